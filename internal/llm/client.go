// Package llm is a minimal client for OpenRouter-style chat completion APIs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNotConfigured is returned when no API key or model is set.
	ErrNotConfigured = errors.New("llm not configured")
	// ErrUpstreamGateway matches every *UpstreamError.
	ErrUpstreamGateway = errors.New("llm upstream failure")
)

// UpstreamError carries the upstream status and body for a failed completion.
// Status is 0 for transport failures.
type UpstreamError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status == 0:
		return fmt.Sprintf("llm request failed: %v", e.Err)
	case e.Err != nil && e.Body != "":
		return fmt.Sprintf("llm returned status %d: %s: %v", e.Status, e.Body, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("llm returned status %d: %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("llm returned status %d: %s", e.Status, e.Body)
	}
}

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamGateway }

func (e *UpstreamError) Unwrap() error { return e.Err }

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompleteOptions struct {
	MaxTokens   int
	Temperature float64
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

// Configured reports whether the client has credentials and a model.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.model != ""
}

// Complete sends messages and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, messages []Message, opts CompleteOptions) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(completionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var result completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("decoding completion: %w", err)}
	}
	if len(result.Choices) == 0 {
		return "", &UpstreamError{Status: resp.StatusCode, Body: "no choices in response"}
	}
	return result.Choices[0].Message.Content, nil
}
