package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/rualca/librarian-agent/internal/logger"
)

// Option configures an OpenAIClient.
type Option func(*OpenAIClient)

// WithLogger sets the logger used for failed requests.
func WithLogger(l *slog.Logger) Option {
	return func(c *OpenAIClient) { c.log = logger.OrNop(l) }
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint
// (OpenAI itself or Groq). Requests are paced by a token bucket.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewOpenAI constructs a client. It fails with ErrNoAPIKey when cfg has no key.
func NewOpenAI(cfg *Config, opts ...Option) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model is not configured (set llm.model)")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	c := &OpenAIClient{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: timeout,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GenerateJSON sends req in JSON-object response mode and returns the raw object.
func (c *OpenAIClient) GenerateJSON(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLLM, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.log.Error("llm request failed", "model", c.model, "error", err, "latency_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("%w: %w", ErrLLM, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrLLM)
	}

	raw, err := ParseJSON(resp.Choices[0].Message.Content)
	if err != nil {
		c.log.Warn("llm returned invalid JSON", "model", c.model, "error", err)
		return nil, err
	}
	c.log.Debug("llm request completed", "model", c.model, "latency_ms", time.Since(start).Milliseconds(), "tokens", resp.Usage.TotalTokens)
	return raw, nil
}

var fenceRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// ParseJSON extracts a JSON object from a model answer, tolerating a
// surrounding markdown code fence.
func ParseJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if m := fenceRe.FindStringSubmatch(content); len(m) > 1 {
			content = m[1]
		}
	}
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", ErrLLM)
	}
	if !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("%w: response is not valid JSON", ErrLLM)
	}
	return json.RawMessage(content), nil
}
