package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LLMConfig selects the chat model used for question generation and answer evaluation.
type LLMConfig struct {
	Provider          string        `yaml:"provider" mapstructure:"provider"`
	Model             string        `yaml:"model" mapstructure:"model"`
	BaseURL           string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EmbeddingsConfig selects the embedding model used by the semantic index.
type EmbeddingsConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"`
	Model       string `yaml:"model" mapstructure:"model"`
	Dim         int    `yaml:"dim" mapstructure:"dim"`
	BaseURL     string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// QdrantConfig points the index at a Qdrant collection when backend is "qdrant".
type QdrantConfig struct {
	Host       string `yaml:"host" mapstructure:"host"`
	Port       int    `yaml:"port" mapstructure:"port"`
	Collection string `yaml:"collection" mapstructure:"collection"`
	UseTLS     bool   `yaml:"use_tls" mapstructure:"use_tls"`
}

// IndexConfig controls the semantic index.
type IndexConfig struct {
	Dir           string       `yaml:"dir" mapstructure:"dir"`
	Backend       string       `yaml:"backend" mapstructure:"backend"`
	MaxChunkChars int          `yaml:"max_chunk_chars" mapstructure:"max_chunk_chars"`
	MinScore      float64      `yaml:"min_score" mapstructure:"min_score"`
	Folders       []string     `yaml:"folders" mapstructure:"folders"`
	Qdrant        QdrantConfig `yaml:"qdrant" mapstructure:"qdrant"`
}

// QuizConfig controls quiz sizes and how long an idle session survives.
type QuizConfig struct {
	DefaultCount int           `yaml:"default_count" mapstructure:"default_count"`
	DeepCount    int           `yaml:"deep_count" mapstructure:"deep_count"`
	SessionTTL   time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
}

// AgentConfig points at the remote coding-agent server used by jobs and chains.
type AgentConfig struct {
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	ProviderID string        `yaml:"provider_id" mapstructure:"provider_id"`
	ModelID    string        `yaml:"model_id" mapstructure:"model_id"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Config is the in-memory representation of ~/.librarian/librarian.yaml.
type Config struct {
	VaultPath  string           `yaml:"vault_path" mapstructure:"vault_path"`
	Language   string           `yaml:"language" mapstructure:"language"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" mapstructure:"embeddings"`
	Index      IndexConfig      `yaml:"index" mapstructure:"index"`
	Quiz       QuizConfig       `yaml:"quiz" mapstructure:"quiz"`
	Agent      AgentConfig      `yaml:"agent" mapstructure:"agent"`
}

// Dir returns the absolute path to ~/.librarian/.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".librarian"), nil
}

// ConfigPath returns the absolute path to ~/.librarian/librarian.yaml.
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "librarian.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

// DefaultConfig returns the default Config written on first librarian init.
func DefaultConfig() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Config{
		VaultPath: filepath.Join(home, "vault"),
		Language:  "es",
		LLM: LLMConfig{
			Provider:          "groq",
			Model:             "meta-llama/llama-4-scout-17b-16e-instruct",
			RequestsPerSecond: 2,
			Timeout:           60 * time.Second,
		},
		Embeddings: EmbeddingsConfig{
			Provider:    "openai",
			Model:       "text-embedding-3-small",
			Dim:         1536,
			BatchSize:   64,
			Concurrency: 4,
		},
		Index: IndexConfig{
			Dir:           filepath.Join(".index", "semantic"),
			Backend:       "flat",
			MaxChunkChars: 2000,
			MinScore:      0.3,
			Folders:       []string{"Cards", "Encounters"},
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "librarian",
			},
		},
		Quiz: QuizConfig{
			DefaultCount: 3,
			DeepCount:    8,
			SessionTTL:   2 * time.Hour,
		},
		Agent: AgentConfig{
			BaseURL:    "http://127.0.0.1:4096",
			ProviderID: "zai-coding-plan",
			ModelID:    "glm-4.7",
			Timeout:    5 * time.Minute,
		},
	}, nil
}

// TrackerPath returns the location of the review tracker document inside the vault.
func (c *Config) TrackerPath() string {
	return filepath.Join(c.VaultPath, "copilot", "exam-tracker.json")
}

// IndexDir returns the absolute directory holding the semantic index artifacts.
func (c *Config) IndexDir() string {
	if filepath.IsAbs(c.Index.Dir) {
		return c.Index.Dir
	}
	return filepath.Join(c.VaultPath, c.Index.Dir)
}

// Load reads ~/.librarian/librarian.yaml with LIBRARIAN_* environment overrides.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. Keys absent from the file keep their defaults.
// Nested keys are overridden by environment variables such as LIBRARIAN_INDEX_BACKEND.
func LoadFile(path string) (*Config, error) {
	def, err := DefaultConfig()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LIBRARIAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, def)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}
	// Expand ~ in VaultPath at load time.
	cfg.VaultPath, err = ExpandPath(cfg.VaultPath)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("vault_path", def.VaultPath)
	v.SetDefault("language", def.Language)

	v.SetDefault("llm.provider", def.LLM.Provider)
	v.SetDefault("llm.model", def.LLM.Model)
	v.SetDefault("llm.base_url", def.LLM.BaseURL)
	v.SetDefault("llm.requests_per_second", def.LLM.RequestsPerSecond)
	v.SetDefault("llm.timeout", def.LLM.Timeout)

	v.SetDefault("embeddings.provider", def.Embeddings.Provider)
	v.SetDefault("embeddings.model", def.Embeddings.Model)
	v.SetDefault("embeddings.dim", def.Embeddings.Dim)
	v.SetDefault("embeddings.base_url", def.Embeddings.BaseURL)
	v.SetDefault("embeddings.batch_size", def.Embeddings.BatchSize)
	v.SetDefault("embeddings.concurrency", def.Embeddings.Concurrency)

	v.SetDefault("index.dir", def.Index.Dir)
	v.SetDefault("index.backend", def.Index.Backend)
	v.SetDefault("index.max_chunk_chars", def.Index.MaxChunkChars)
	v.SetDefault("index.min_score", def.Index.MinScore)
	v.SetDefault("index.folders", def.Index.Folders)
	v.SetDefault("index.qdrant.host", def.Index.Qdrant.Host)
	v.SetDefault("index.qdrant.port", def.Index.Qdrant.Port)
	v.SetDefault("index.qdrant.collection", def.Index.Qdrant.Collection)
	v.SetDefault("index.qdrant.use_tls", def.Index.Qdrant.UseTLS)

	v.SetDefault("quiz.default_count", def.Quiz.DefaultCount)
	v.SetDefault("quiz.deep_count", def.Quiz.DeepCount)
	v.SetDefault("quiz.session_ttl", def.Quiz.SessionTTL)

	v.SetDefault("agent.base_url", def.Agent.BaseURL)
	v.SetDefault("agent.provider_id", def.Agent.ProviderID)
	v.SetDefault("agent.model_id", def.Agent.ModelID)
	v.SetDefault("agent.timeout", def.Agent.Timeout)
}

// Save marshals cfg and writes it to ~/.librarian/librarian.yaml.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(path, cfg)
}

// SaveFile marshals cfg as YAML and writes it to path.
func SaveFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}
