// Package embeddings turns text into float vectors for the semantic index.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rualca/librarian-agent/internal/config"
)

// ErrUnavailable is returned when no embedding capability is configured.
var ErrUnavailable = errors.New("embeddings unavailable")

// Provider embeds texts into fixed-length float vectors, one per input and in
// input order.
//
// Implementations must be deterministic for the same input text and model.
type Provider interface {
	ModelID() string
	Dim() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config contains the resolved embeddings configuration.
type Config struct {
	Provider    string
	Model       string
	Dim         int
	APIKey      string
	BaseURL     string
	BatchSize   int
	Concurrency int
}

// LoadConfig resolves the embeddings config from librarian.yaml plus the API
// key from the environment or ~/.librarian/.env.
func LoadConfig(c config.EmbeddingsConfig) (*Config, error) {
	apiKey, err := config.GetConfigValue(config.EmbeddingsAPIKeyEnv)
	if err != nil {
		return nil, err
	}
	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Config{
		Provider:    c.Provider,
		Model:       c.Model,
		Dim:         c.Dim,
		APIKey:      apiKey,
		BaseURL:     baseURL,
		BatchSize:   c.BatchSize,
		Concurrency: c.Concurrency,
	}, nil
}

// NewFromConfig returns an embeddings provider. A missing API key yields an
// error wrapping ErrUnavailable so callers can degrade instead of failing.
func NewFromConfig(cfg *Config) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embeddings config is nil")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is not configured (set %s)", ErrUnavailable, config.EmbeddingsAPIKeyEnv)
	}
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg), nil
	case "":
		return nil, fmt.Errorf("%w: provider is not configured (set embeddings.provider)", ErrUnavailable)
	default:
		return nil, fmt.Errorf("unsupported embeddings provider: %s", cfg.Provider)
	}
}

// EmbedAll embeds texts in batches of batchSize, running up to concurrency
// batches at once. The result preserves input order.
func EmbedAll(ctx context.Context, p Provider, texts []string, batchSize, concurrency int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			vecs, err := p.Embed(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embeddings batch returned %d vectors for %d texts", len(vecs), end-start)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
