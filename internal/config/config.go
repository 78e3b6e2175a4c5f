package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	IntervalsBaseURL string `envconfig:"INTERVALS_BASE_URL" default:"https://intervals.icu"`
	IntervalsAPIKey  string `envconfig:"INTERVALS_API_KEY" required:"true"`

	DownloadDir    string        `envconfig:"DOWNLOAD_DIR" required:"true"`
	MaxParallel    int           `envconfig:"MAX_PARALLEL" default:"5"`
	MaxTrackedJobs int           `envconfig:"MAX_TRACKED_JOBS" default:"100"`
	ChunkSize      int           `envconfig:"CHUNK_SIZE" default:"262144"`
	HeaderTimeout  time.Duration `envconfig:"HEADER_TIMEOUT" default:"30s"`

	MaxAttempts    int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"RETRY_BASE_DELAY" default:"500ms"`
	RetryMaxDelay  time.Duration `envconfig:"RETRY_MAX_DELAY" default:"30s"`

	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
	DBPath        string `envconfig:"DB_PATH" default:"webhooks.db"`

	LogLevel         string `envconfig:"LOG_LEVEL" default:"INFO"`
	TelemetryEnabled bool   `envconfig:"TELEMETRY_ENABLED" default:"true"`

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:8080"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
