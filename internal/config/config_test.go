package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("INTERVALS_API_KEY", "secret-key")
	t.Setenv("DOWNLOAD_DIR", "/var/lib/downloads")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://intervals.icu", cfg.IntervalsBaseURL)
	assert.Equal(t, "secret-key", cfg.IntervalsAPIKey)
	assert.Equal(t, "/var/lib/downloads", cfg.DownloadDir)
	assert.Equal(t, 5, cfg.MaxParallel)
	assert.Equal(t, 100, cfg.MaxTrackedJobs)
	assert.Equal(t, 262144, cfg.ChunkSize)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, 30*time.Second, cfg.RetryMaxDelay)
	assert.Equal(t, "webhooks.db", cfg.DBPath)
	assert.True(t, cfg.TelemetryEnabled)
	assert.Equal(t, "0.0.0.0:8080", cfg.Web.BindAddress)
	assert.Equal(t, 30*time.Second, cfg.Web.ShutdownTimeout)
}

func TestLoadConfig_MissingAPIKey(t *testing.T) {
	t.Setenv("INTERVALS_API_KEY", "")
	t.Setenv("DOWNLOAD_DIR", "/var/lib/downloads")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_PARALLEL", "2")
	t.Setenv("MAX_TRACKED_JOBS", "10")
	t.Setenv("RETRY_BASE_DELAY", "1s")
	t.Setenv("WEB_BIND_ADDRESS", "127.0.0.1:9090")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.MaxParallel)
	assert.Equal(t, 10, cfg.MaxTrackedJobs)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, "127.0.0.1:9090", cfg.Web.BindAddress)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		assert.Equal(t, tt.want, cfg.SlogLevel(), tt.level)
	}
}
