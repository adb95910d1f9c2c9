package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}

	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	switch c.Memory.Backend {
	case "file":
		if c.Memory.IndexDir == "" {
			errs = append(errs, "MEMORY_INDEX_DIR is required for the file backend")
		}
	case "postgres":
	default:
		errs = append(errs, fmt.Sprintf("MEMORY_BACKEND must be file or postgres, got %q", c.Memory.Backend))
	}
	if c.Memory.SearchK < 1 {
		errs = append(errs, "MEMORY_SEARCH_K must be positive")
	}
	if c.Embedding.Dims < 1 {
		errs = append(errs, "EMBEDDING_DIMS must be positive")
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		errs = append(errs, fmt.Sprintf("CHAT_TEMPERATURE must be 0-2, got %g", c.Chat.Temperature))
	}

	// Missing credentials degrade features instead of failing startup.
	if c.LLM.APIKey == "" || c.LLM.Model == "" {
		slog.Warn("LLM_API_KEY or LLM_MODEL is empty, chat replies will be a configuration notice")
	}
	if c.Embedding.APIKey == "" {
		slog.Warn("EMBEDDING_API_KEY is empty, retrieval memory runs degraded")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
