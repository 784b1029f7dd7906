package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rualca/librarian-agent/internal/logger"
)

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.WithWriter(&buf))
	l.Info("hello", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "key=value")
}

func TestNew_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger.New(logger.WithWriter(&buf), logger.WithDebug(true)).Debug("debug msg")
	assert.Contains(t, buf.String(), "debug msg")

	buf.Reset()
	logger.New(logger.WithWriter(&buf), logger.WithDebug(false)).Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger.New(logger.WithWriter(&buf), logger.WithJSON(true)).Info("structured", "count", 42)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "structured", parsed["msg"])
	assert.EqualValues(t, 42, parsed["count"])
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	logger.New(logger.WithWriter(&buf), logger.WithPretty(true)).Info("pretty output")
	assert.Contains(t, buf.String(), "pretty output")
}

func TestNew_MultipleWriters(t *testing.T) {
	var a, b bytes.Buffer
	logger.New(logger.WithWriters(&a, &b)).Info("multi")
	assert.Contains(t, a.String(), "multi")
	assert.Contains(t, b.String(), "multi")
}

func TestNop(t *testing.T) {
	l := logger.Nop()
	require.NotNil(t, l)
	l.Error("dropped")
	assert.Same(t, l, logger.OrNop(l))
	assert.NotNil(t, logger.OrNop(nil))
}
