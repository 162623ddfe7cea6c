package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Format: FormatText, Output: &buf}).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")

	buf.Reset()
	New(Config{Format: FormatJSON, Output: &buf}).Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestNewLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})
	logger.Info("dropped")
	logger.Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestNopDiscards(t *testing.T) {
	logger := Nop()
	assert.False(t, logger.Enabled(context.Background(), LevelError))
	logger.Error("discarded")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))

	// Unset and unknown both fall back to info.
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat(""))
	assert.Equal(t, FormatText, ParseFormat("yaml"))
}

func TestMultiHandlerFanOut(t *testing.T) {
	var console, sink bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&console, &slog.HandlerOptions{Level: LevelInfo}),
		slog.NewJSONHandler(&sink, &slog.HandlerOptions{Level: LevelError}),
	)

	assert.True(t, h.Enabled(context.Background(), LevelInfo))

	logger := slog.New(h)
	logger.Info("console only")
	logger.Error("both")

	assert.Contains(t, console.String(), "console only")
	assert.Contains(t, console.String(), "both")
	assert.NotContains(t, sink.String(), "console only")
	assert.Contains(t, sink.String(), "both")
}
