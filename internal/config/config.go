package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/otavio/vigia/internal/measure"
)

// Config holds all vigia settings. Every field reads VIGIA_<NAME> first and, where an
// envconfig tag is set, falls back to the bare name (e.g. DATABASE_URL).
type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL"`
	Session     string `envconfig:"SESSION" default:"vigia" validate:"required"`

	HistoryPath string `envconfig:"HISTORY_PATH"`
	HistorySize int    `envconfig:"HISTORY_SIZE" default:"10" validate:"min=1,max=100"`

	RefreshInterval    time.Duration `envconfig:"REFRESH_INTERVAL" default:"5s" validate:"min=0"`
	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"2s" validate:"min=100ms"`
	AnalyzeCmd         string        `envconfig:"ANALYZE_CMD"`
	QualityGate        string        `envconfig:"QUALITY_GATE"`

	ServerAddr      string        `envconfig:"SERVER_ADDR" default:":9000" validate:"required"`
	ServerURL       string        `envconfig:"SERVER_URL" validate:"omitempty,url"`
	HTTPTimeout     time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"min=1s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s" validate:"min=1s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`
	LogFile   string `envconfig:"LOG_FILE"`
}

var validate = validator.New()

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("VIGIA", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = defaultHistoryPath()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := measure.ParseGate(c.QualityGate); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Gate returns the configured quality gate. Validate has already checked it parses.
func (c *Config) Gate() measure.Gate {
	g, err := measure.ParseGate(c.QualityGate)
	if err != nil {
		return measure.DefaultGate
	}
	return g
}

func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "vigia", "history.db")
}

// SetupLogger installs the default slog logger writing to w.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
