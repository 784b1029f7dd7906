package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rualca/librarian-agent/internal/config"
)

func chatServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "test-model", req["model"])
		assert.Equal(t, map[string]any{"type": "json_object"}, req["response_format"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "x",
			"object":  "chat.completion",
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, url string) *OpenAIClient {
	t.Helper()
	c, err := NewOpenAI(&Config{Provider: "openai", Model: "test-model", APIKey: "test-key", BaseURL: url})
	require.NoError(t, err)
	return c
}

func TestGenerateJSON(t *testing.T) {
	srv := chatServer(t, `{"score": 4}`, http.StatusOK)
	raw, err := newTestClient(t, srv.URL).GenerateJSON(context.Background(), Request{System: "s", User: "u"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"score": 4}`, string(raw))
}

func TestGenerateJSON_Fenced(t *testing.T) {
	srv := chatServer(t, "```json\n{\"ok\": true}\n```", http.StatusOK)
	raw, err := newTestClient(t, srv.URL).GenerateJSON(context.Background(), Request{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, string(raw))
}

func TestGenerateJSON_Invalid(t *testing.T) {
	srv := chatServer(t, "not json at all", http.StatusOK)
	_, err := newTestClient(t, srv.URL).GenerateJSON(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrLLM)
}

func TestGenerateJSON_HTTPError(t *testing.T) {
	srv := chatServer(t, "", http.StatusInternalServerError)
	_, err := newTestClient(t, srv.URL).GenerateJSON(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrLLM)
}

func TestNewOpenAI_NoKey(t *testing.T) {
	_, err := NewOpenAI(&Config{Model: "m"})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestLoadConfig_DefaultBaseURL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LIBRARIAN_LLM_API_KEY", "k")

	cfg, err := LoadConfig(config.LLMConfig{Provider: "groq", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.BaseURL)
	assert.Equal(t, "k", cfg.APIKey)

	_, err = NewFromConfig(&Config{Provider: "anthropic"})
	assert.Error(t, err)
}
