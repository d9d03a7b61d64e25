package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/marianozunino/ezyshare/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestInitJSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	log := initWith(&buf, config.LogConfig{Level: "info", Format: "json"}, "")

	log.Debug("hidden")
	log.Info("share stored", "id", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "share stored", entry["msg"])
	assert.Equal(t, "abc", entry["id"])
	assert.Same(t, log, slog.Default())
}

func TestInitText(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	initWith(&buf, config.LogConfig{Level: "debug", Format: "text"}, "")

	slog.Debug("visible", "step", "upload")
	assert.Contains(t, buf.String(), "msg=visible")
	assert.Contains(t, buf.String(), "step=upload")
}
