package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDotEnv(t *testing.T, home, body string) string {
	t.Helper()
	dir := filepath.Join(home, ".librarian")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	p := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDotEnv_NotExist(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	m, err := LoadDotEnv()
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeDotEnv(t, home, "# comment\nA=1\nB=two\n  C = \"quoted value\"\nbroken line\n=nokey\n")

	m, err := LoadDotEnv()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "two", "C": " \"quoted value\""}, m)
}

func TestLoadDotEnv_Unquotes(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeDotEnv(t, home, "K1=\"abc\"\nK2='def'\nK3=\"mismatch'\n")

	m, err := LoadDotEnv()
	require.NoError(t, err)
	assert.Equal(t, "abc", m["K1"])
	assert.Equal(t, "def", m["K2"])
	assert.Equal(t, "\"mismatch'", m["K3"])
}

func TestParseDotEnv_ExportPrefix(t *testing.T) {
	m, err := ParseDotEnv(strings.NewReader("export TOKEN=abc\n#x=1\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"TOKEN": "abc"}, m)
}

func TestGetConfigValue_EnvOverridesDotEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeDotEnv(t, home, "K=fromdotenv\nONLY=file\n")
	t.Setenv("K", "fromenv")

	v, err := GetConfigValue("K")
	require.NoError(t, err)
	assert.Equal(t, "fromenv", v)

	v, err = GetConfigValue("ONLY")
	require.NoError(t, err)
	assert.Equal(t, "file", v)
}

func TestEnsureDotEnvTemplate_DoesNotOverwrite(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	p := writeDotEnv(t, home, "LIBRARIAN_LLM_API_KEY=keep\n")

	require.NoError(t, EnsureDotEnvTemplate())

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "LIBRARIAN_LLM_API_KEY=keep\n", string(b))
}

func TestEnsureDotEnvTemplate_CreatesWhenMissing(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, EnsureDotEnvTemplate())

	b, err := os.ReadFile(filepath.Join(home, ".librarian", ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(b), LLMAPIKeyEnv+"=")
	assert.Contains(t, string(b), EmbeddingsAPIKeyEnv+"=")
}
