package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/otavio/vigia/internal/config"
	"github.com/otavio/vigia/internal/db"
)

var (
	dbURL       string
	sessionName string
	pool        *pgxpool.Pool
)

var rootCmd = &cobra.Command{
	Use:   "vigia",
	Short: "Component analysis queue and status navigator",
	Long:  "Vigia queues component analyses in PostgreSQL, runs them with tmux-hosted workers, and shows their status in a terminal navigator.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "database URL (overrides VIGIA_DATABASE_URL / DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&sessionName, "session", "", "tmux session name (overrides VIGIA_SESSION)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// connectDB initializes the database pool. Call from subcommands that need DB access.
func connectDB() error {
	url := dbURL
	if url == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		url = cfg.DatabaseURL
	}
	if url == "" {
		return fmt.Errorf("DATABASE_URL not set (use --db flag or .env)")
	}

	var err error
	pool, err = db.Connect(url)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	return nil
}

// getSessionName returns the tmux session name from flag, env, or default.
// A configuration error is returned rather than silently falling back.
func getSessionName() (string, error) {
	if sessionName != "" {
		return sessionName, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.Session, nil
}

// setupLogging installs the slog default. Logs go to cfg.LogFile when set, else to w.
// The returned func closes the log file.
func setupLogging(cfg *config.Config, w io.Writer) (*slog.Logger, func(), error) {
	if cfg.LogFile == "" {
		return config.SetupLogger(cfg, w), func() {}, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return config.SetupLogger(cfg, f), func() { f.Close() }, nil
}

func main() {
	_ = godotenv.Load()

	err := rootCmd.Execute()

	if pool != nil {
		pool.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}
