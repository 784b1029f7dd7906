// Package agent talks to a local coding-agent server over its REST API and
// runs multi-agent chains on top of it.
package agent

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

	"github.com/rualca/librarian-agent/internal/config"
)

// ErrAgent wraps errors reported by the agent server inside a 2xx response.
var ErrAgent = errors.New("agent error")

const maxResponseBytes = 8 << 20

// Model selects the provider/model pair a message is run with.
type Model struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}

// Client is a REST client for the agent server. Every request carries the
// vault directory the agent should work in.
type Client struct {
	baseURL   string
	directory string
	model     Model
	http      *http.Client
}

// NewClient returns a client for cfg working in directory.
func NewClient(cfg config.AgentConfig, directory string) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		directory: directory,
		model:     Model{ProviderID: cfg.ProviderID, ModelID: cfg.ModelID},
		http:      &http.Client{Timeout: timeout},
	}
}

// DefaultModel returns the model sent with every message.
func (c *Client) DefaultModel() Model { return c.model }

// Health reports whether the server answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := c.do(ctx, http.MethodGet, "/global/health", nil)
	return err
}

// Session is a server-side conversation.
type Session struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// CreateSession opens a new conversation.
func (c *Client) CreateSession(ctx context.Context, title string) (Session, error) {
	body := map[string]any{}
	if title != "" {
		body["title"] = title
	}
	b, err := c.do(ctx, http.MethodPost, "/session", body)
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return Session{}, fmt.Errorf("cannot parse session: %w", err)
	}
	if s.ID == "" {
		return Session{}, fmt.Errorf("session response missing id")
	}
	return s, nil
}

type messagePart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type messageResponse struct {
	Info struct {
		Error *struct {
			Name string `json:"name"`
			Data struct {
				Message string `json:"message"`
			} `json:"data"`
		} `json:"error"`
	} `json:"info"`
	Parts []messagePart `json:"parts"`
}

// SendMessage sends prompt to agent (empty for the server default) and
// returns the text parts of the reply joined by newlines.
func (c *Client) SendMessage(ctx context.Context, sessionID, prompt, agent string) (string, error) {
	body := map[string]any{
		"parts": []messagePart{{Type: "text", Text: prompt}},
		"model": c.model,
	}
	if agent != "" {
		body["agent"] = agent
	}
	b, err := c.do(ctx, http.MethodPost, "/session/"+sessionID+"/message", body)
	if err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return "", nil
	}

	var resp messageResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return "", fmt.Errorf("cannot parse message response: %w", err)
	}
	if e := resp.Info.Error; e != nil {
		msg := e.Data.Message
		if msg == "" {
			msg = e.Name
		}
		return "", fmt.Errorf("%w: %s", ErrAgent, msg)
	}

	var parts []string
	for _, p := range resp.Parts {
		if p.Type == "text" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// ExecuteTask runs prompt with agent in a fresh session.
func (c *Client) ExecuteTask(ctx context.Context, prompt, agent, title string) (string, error) {
	s, err := c.CreateSession(ctx, title)
	if err != nil {
		return "", err
	}
	return c.SendMessage(ctx, s.ID, prompt, agent)
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.directory != "" {
		req.Header.Set("x-opencode-directory", c.directory)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("agent request %s %s failed: HTTP %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return b, nil
}
