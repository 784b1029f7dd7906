package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rualca/librarian-agent/internal/agent"
	"github.com/rualca/librarian-agent/internal/config"
	"github.com/rualca/librarian-agent/internal/embeddings"
	"github.com/rualca/librarian-agent/internal/llm"
	"github.com/rualca/librarian-agent/internal/logger"
	"github.com/rualca/librarian-agent/internal/quiz"
	"github.com/rualca/librarian-agent/internal/review"
	"github.com/rualca/librarian-agent/internal/search/index"
	"github.com/rualca/librarian-agent/internal/vault"
)

// app holds the components shared by the commands.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	vault   *vault.Vault
	tracker *review.Tracker
}

func newLogger() *slog.Logger {
	return logger.New(
		logger.WithDebug(flagDebug),
		logger.WithPretty(flagPretty),
		logger.WithJSON(flagLogJSON),
	)
}

// loadApp reads the config and opens the vault. Commands that only need the
// vault and tracker use it directly; the rest build on top of it.
func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w\nRun 'librarian init' first.", err)
	}
	if _, err := os.Stat(cfg.VaultPath); err != nil {
		return nil, fmt.Errorf("vault not found at %s: %w", cfg.VaultPath, err)
	}
	log := newLogger()
	return &app{
		cfg:     cfg,
		log:     log,
		vault:   vault.New(cfg.VaultPath),
		tracker: review.NewTracker(cfg.TrackerPath(), log),
	}, nil
}

// embedder returns the configured embeddings provider, or nil when no API
// key is set so semantic features degrade instead of failing.
func (a *app) embedder() (embeddings.Provider, error) {
	embCfg, err := embeddings.LoadConfig(a.cfg.Embeddings)
	if err != nil {
		return nil, err
	}
	p, err := embeddings.NewFromConfig(embCfg)
	if err != nil {
		if errors.Is(err, embeddings.ErrUnavailable) {
			a.log.Warn("semantic search disabled", "reason", err)
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (a *app) indexBackend() (index.Backend, error) {
	switch a.cfg.Index.Backend {
	case "", "flat":
		return index.FlatBackend{Path: filepath.Join(a.cfg.IndexDir(), index.VectorFile), Log: a.log}, nil
	case "qdrant":
		apiKey, err := config.GetConfigValue(config.QdrantAPIKeyEnv)
		if err != nil {
			return nil, err
		}
		q := a.cfg.Index.Qdrant
		return index.QdrantBackend{Config: index.QdrantConfig{
			Host:       q.Host,
			Port:       q.Port,
			APIKey:     apiKey,
			UseTLS:     q.UseTLS,
			Collection: q.Collection,
		}}, nil
	default:
		return nil, fmt.Errorf("unsupported index backend %q (expected flat or qdrant)", a.cfg.Index.Backend)
	}
}

// indexManager wires the semantic index. It is always non-nil; without an
// embedder its searches return nothing.
func (a *app) indexManager() (*index.Manager, error) {
	p, err := a.embedder()
	if err != nil {
		return nil, err
	}
	b, err := a.indexBackend()
	if err != nil {
		return nil, err
	}
	return index.NewManager(a.vault, p, b, index.Options{
		Dir:           a.cfg.IndexDir(),
		Folders:       a.cfg.Index.Folders,
		MaxChunkChars: a.cfg.Index.MaxChunkChars,
		MinScore:      a.cfg.Index.MinScore,
		BatchSize:     a.cfg.Embeddings.BatchSize,
		Concurrency:   a.cfg.Embeddings.Concurrency,
	}, a.log), nil
}

// quizService wires a quiz service that keeps its sessions in store.
func (a *app) quizService(store quiz.SessionStore) (*quiz.Service, error) {
	llmCfg, err := llm.LoadConfig(a.cfg.LLM)
	if err != nil {
		return nil, err
	}
	client, err := llm.NewFromConfig(llmCfg, llm.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	gen := quiz.NewGenerator(client, a.cfg.Language, a.log)
	return quiz.NewService(a.vault, a.tracker, gen, store, quiz.ServiceOptions{
		DefaultCount: a.cfg.Quiz.DefaultCount,
		DeepCount:    a.cfg.Quiz.DeepCount,
	}, a.log), nil
}

func (a *app) agentClient() *agent.Client {
	return agent.NewClient(a.cfg.Agent, a.cfg.VaultPath)
}
