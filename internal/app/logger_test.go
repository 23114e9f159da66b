package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSONCarriesComponentAndEnv(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", AppEnv: "staging"}, "worker")
	logger.Info("alert notified", slog.Int64("alert_id", 7))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "alert notified", rec["msg"])
	assert.Equal(t, "worker", rec["component"])
	assert.Equal(t, "staging", rec["env"])
	assert.Equal(t, float64(7), rec["alert_id"])
	assert.Contains(t, rec, slog.SourceKey)
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogLevel: slog.LevelWarn}, "api")
	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "msg=kept")
	assert.Contains(t, buf.String(), "component=api")
}

func TestNewLoggerWithoutConfig(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, nil, "insiderctl").Info("hello")
	assert.Contains(t, buf.String(), "component=insiderctl")
	assert.NotContains(t, buf.String(), "env=")
}

func TestLoadConfigLogLevel(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)

	t.Setenv("LOG_LEVEL", "debug")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}
