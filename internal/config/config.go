package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	NATS      NATSConfig
	JWT       JWTConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Memory    MemoryConfig
	Chat      ChatConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
	AutoMigrate    bool
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NATSConfig is optional. An empty URL disables event publishing.
type NATSConfig struct {
	URL string
}

// JWTConfig only carries the access secret; tokens are issued by the auth service.
type JWTConfig struct {
	AccessSecret string
}

type LLMConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type EmbeddingConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Dims    int
	Timeout time.Duration
}

type MemoryConfig struct {
	Backend       string // "file" or "postgres"
	IndexDir      string
	SearchK       int
	ContextLimit  int
	ShortTermMsgs int
	ShortTermTTL  time.Duration
}

type ChatConfig struct {
	HistoryTurns int
	MaxTokens    int
	Temperature  float64
	AutoLogMeals bool
}

type RateLimitConfig struct {
	ChatRequests int
	ChatWindow   time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
			AutoMigrate:    k.Bool("db.auto.migrate"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		JWT: JWTConfig{
			AccessSecret: k.String("jwt.access.secret"),
		},
		LLM: LLMConfig{
			APIKey:  k.String("llm.api.key"),
			Model:   k.String("llm.model"),
			BaseURL: k.String("llm.base.url"),
		},
		Embedding: EmbeddingConfig{
			APIKey:  k.String("embedding.api.key"),
			Model:   k.String("embedding.model"),
			BaseURL: k.String("embedding.base.url"),
			Dims:    k.Int("embedding.dims"),
		},
		Memory: MemoryConfig{
			Backend:       k.String("memory.backend"),
			IndexDir:      k.String("memory.index.dir"),
			SearchK:       k.Int("memory.search.k"),
			ContextLimit:  k.Int("memory.context.limit"),
			ShortTermMsgs: k.Int("memory.shortterm.msgs"),
		},
		Chat: ChatConfig{
			HistoryTurns: k.Int("chat.history.turns"),
			MaxTokens:    k.Int("chat.max.tokens"),
			Temperature:  k.Float64("chat.temperature"),
			AutoLogMeals: !k.Exists("chat.autolog.meals") || k.Bool("chat.autolog.meals"),
		},
		RateLimit: RateLimitConfig{
			ChatRequests: k.Int("ratelimit.chat.requests"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	if origins := k.String("cors.allowed.origins"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORS.AllowedOrigins = append(cfg.CORS.AllowedOrigins, o)
			}
		}
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "prona"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "prona"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dims == 0 {
		cfg.Embedding.Dims = 1536
	}
	if cfg.Memory.Backend == "" {
		cfg.Memory.Backend = "file"
	}
	if cfg.Memory.IndexDir == "" {
		cfg.Memory.IndexDir = "data/rag"
	}
	if cfg.Memory.SearchK == 0 {
		cfg.Memory.SearchK = 5
	}
	if cfg.Memory.ContextLimit == 0 {
		cfg.Memory.ContextLimit = 800
	}
	if cfg.Memory.ShortTermMsgs == 0 {
		cfg.Memory.ShortTermMsgs = 10
	}
	if cfg.Chat.HistoryTurns == 0 {
		cfg.Chat.HistoryTurns = 5
	}
	if cfg.Chat.MaxTokens == 0 {
		cfg.Chat.MaxTokens = 300
	}
	if cfg.Chat.Temperature == 0 {
		cfg.Chat.Temperature = 0.7
	}
	if cfg.RateLimit.ChatRequests == 0 {
		cfg.RateLimit.ChatRequests = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	if cfg.LLM.Timeout, err = parseDuration(k, "llm.timeout", "20s"); err != nil {
		return nil, fmt.Errorf("parsing llm timeout: %w", err)
	}
	if cfg.Embedding.Timeout, err = parseDuration(k, "embedding.timeout", "10s"); err != nil {
		return nil, fmt.Errorf("parsing embedding timeout: %w", err)
	}
	if cfg.Memory.ShortTermTTL, err = parseDuration(k, "memory.shortterm.ttl", "24h"); err != nil {
		return nil, fmt.Errorf("parsing short-term ttl: %w", err)
	}
	if cfg.RateLimit.ChatWindow, err = parseDuration(k, "ratelimit.chat.window", "1m"); err != nil {
		return nil, fmt.Errorf("parsing chat rate limit window: %w", err)
	}

	return cfg, nil
}

func parseDuration(k *koanf.Koanf, key, fallback string) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		s = fallback
	}
	return time.ParseDuration(s)
}
