package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Secret keys read through GetConfigValue.
const (
	LLMAPIKeyEnv        = "LIBRARIAN_LLM_API_KEY"
	EmbeddingsAPIKeyEnv = "LIBRARIAN_EMBEDDINGS_API_KEY"
	QdrantAPIKeyEnv     = "LIBRARIAN_QDRANT_API_KEY"
)

var dotEnvTemplate = []struct{ key, comment string }{
	{LLMAPIKeyEnv, "chat model used to generate and grade quiz questions"},
	{EmbeddingsAPIKeyEnv, "embedding model used by the semantic index"},
	{QdrantAPIKeyEnv, "only needed when index.backend is qdrant"},
}

// DotEnvPath returns the absolute path to the dotenv file (~/.librarian/.env).
func DotEnvPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".env"), nil
}

// LoadDotEnv reads ~/.librarian/.env. A missing file yields an empty map.
func LoadDotEnv() (map[string]string, error) {
	p, err := DotEnvPath()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open dotenv file %s: %w", p, err)
	}
	defer f.Close()

	m, err := ParseDotEnv(f)
	if err != nil {
		return nil, fmt.Errorf("cannot read dotenv file %s: %w", p, err)
	}
	return m, nil
}

// ParseDotEnv parses KEY=VALUE lines. Blank lines, '#' comments and lines
// without a key are skipped; an "export " prefix is allowed. Whitespace
// around the key is trimmed and a value wrapped in matching single or double
// quotes is unquoted. Other values are kept verbatim.
func ParseDotEnv(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		k, v, ok := strings.Cut(line, "=")
		if k = strings.TrimSpace(k); !ok || k == "" {
			continue
		}
		if n := len(v); n >= 2 && (v[0] == '"' || v[0] == '\'') && v[n-1] == v[0] {
			v = v[1 : n-1]
		}
		out[k] = v
	}
	return out, sc.Err()
}

// GetConfigValue returns the process environment value for key, falling back
// to ~/.librarian/.env.
func GetConfigValue(key string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	m, err := LoadDotEnv()
	if err != nil {
		return "", err
	}
	return m[key], nil
}

// EnsureDotEnvTemplate writes ~/.librarian/.env listing every secret key
// with an empty value. An existing file is left alone.
func EnsureDotEnvTemplate() error {
	p, err := DotEnvPath()
	if err != nil {
		return err
	}
	switch _, err := os.Stat(p); {
	case err == nil:
		return nil
	case !os.IsNotExist(err):
		return fmt.Errorf("cannot stat dotenv file %s: %w", p, err)
	}

	var b strings.Builder
	for _, e := range dotEnvTemplate {
		fmt.Fprintf(&b, "# %s\n%s=\n", e.comment, e.key)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("cannot create config dir: %w", err)
	}
	if err := os.WriteFile(p, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("cannot write dotenv template %s: %w", p, err)
	}
	return nil
}
