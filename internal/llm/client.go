// Package llm calls a chat model that answers with a single JSON object.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rualca/librarian-agent/internal/config"
)

var (
	// ErrLLM wraps every failure to obtain a usable JSON answer.
	ErrLLM = errors.New("llm request failed")
	// ErrNoAPIKey is returned when no API key is configured for the provider.
	ErrNoAPIKey = errors.New("llm api key not configured (set " + config.LLMAPIKeyEnv + ")")
)

// Request is one structured generation call.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// Client generates a JSON object for a prompt. Implementations return an
// error wrapping ErrLLM when the response is absent or not valid JSON.
type Client interface {
	GenerateJSON(ctx context.Context, req Request) (json.RawMessage, error)
}

// Config contains the resolved chat model configuration.
type Config struct {
	Provider          string
	Model             string
	APIKey            string
	BaseURL           string
	RequestsPerSecond float64
	Timeout           time.Duration
}

var defaultBaseURLs = map[string]string{
	"groq":   "https://api.groq.com/openai/v1",
	"openai": "https://api.openai.com/v1",
}

// LoadConfig resolves the chat model config from the librarian.yaml section
// plus the API key from the environment or ~/.librarian/.env.
func LoadConfig(c config.LLMConfig) (*Config, error) {
	apiKey, err := config.GetConfigValue(config.LLMAPIKeyEnv)
	if err != nil {
		return nil, err
	}
	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURLs[c.Provider]
	}
	return &Config{
		Provider:          c.Provider,
		Model:             c.Model,
		APIKey:            apiKey,
		BaseURL:           baseURL,
		RequestsPerSecond: c.RequestsPerSecond,
		Timeout:           c.Timeout,
	}, nil
}

// NewFromConfig returns a chat client for the configured provider.
func NewFromConfig(cfg *Config, opts ...Option) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm config is nil")
	}
	switch cfg.Provider {
	case "groq", "openai":
		return NewOpenAI(cfg, opts...)
	case "":
		return nil, fmt.Errorf("llm provider is not configured (set llm.provider)")
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
