package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/otavio/vigia/internal/config"
	"github.com/otavio/vigia/internal/db"
	"github.com/otavio/vigia/internal/tmux"
	"github.com/otavio/vigia/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run and manage analysis workers",
}

var (
	workerRunID       string
	workerMetricsAddr string
)

var workerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Claim and run analyses until interrupted (long-running)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, closeLog, err := setupLogging(cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer closeLog()

		if err := connectDB(); err != nil {
			return err
		}

		id, err := ensureWorker(workerRunID)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer stop()

		if workerMetricsAddr != "" {
			stopMetrics := serveMetrics(workerMetricsAddr, logger)
			defer stopMetrics()
		}

		r := &worker.Runner{
			ID:         id,
			Store:      worker.PostgresStore{Pool: pool},
			AnalyzeCmd: cfg.AnalyzeCmd,
			Gate:       cfg.Gate(),
			Interval:   cfg.WorkerPollInterval,
			Logger:     logger,
		}
		if err := r.Run(ctx); err != nil {
			return err
		}

		if err := db.DeleteWorker(pool, id); err != nil {
			logger.Warn("worker: deregistering", "worker", id, "error", err)
		}
		return nil
	},
}

var workerSpawnCount int

var workerSpawnCmd = &cobra.Command{
	Use:   "spawn",
	Short: "Start workers in tmux windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		if workerSpawnCount < 1 {
			return fmt.Errorf("--count must be at least 1")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := connectDB(); err != nil {
			return err
		}

		session, err := getSessionName()
		if err != nil {
			return err
		}
		if err := tmux.EnsureSession(session); err != nil {
			return err
		}

		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locating vigia binary: %w", err)
		}
		env := workerEnv(cfg, dbURL)

		for i := 0; i < workerSpawnCount; i++ {
			existing, err := db.ListWorkers(pool)
			if err != nil {
				return err
			}
			w, err := worker.Spawn(pool, session, worker.NextID(existing), exe, env)
			if err != nil {
				return fmt.Errorf("spawning worker: %w", err)
			}
			fmt.Printf("Spawned: %s  →  %s:%s\n", w.ID, w.TmuxSession, w.TmuxWindow)
		}
		return nil
	},
}

var workerLogsLines int

var workerLogsCmd = &cobra.Command{
	Use:   "logs <worker-id>",
	Short: "Capture last N lines from a worker's tmux window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connectDB(); err != nil {
			return err
		}

		w, err := lookupWorker(args[0])
		if err != nil {
			return err
		}

		output, err := tmux.CapturePane(w.TmuxSession, w.TmuxWindow, workerLogsLines)
		if err != nil {
			return fmt.Errorf("capturing pane: %w", err)
		}

		fmt.Println(output)
		return nil
	},
}

var workerAttachCmd = &cobra.Command{
	Use:   "attach <worker-id>",
	Short: "Attach to a worker's tmux window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connectDB(); err != nil {
			return err
		}

		w, err := lookupWorker(args[0])
		if err != nil {
			return err
		}
		pool.Close()
		pool = nil
		return tmux.AttachOrSwitch(w.TmuxSession, w.TmuxWindow)
	},
}

var workerKillAll bool

var workerKillCmd = &cobra.Command{
	Use:   "kill [worker-id]",
	Short: "Kill worker(s) and requeue their analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !workerKillAll && len(args) == 0 {
			return fmt.Errorf("specify a worker ID or use --all")
		}
		if err := connectDB(); err != nil {
			return err
		}

		if workerKillAll {
			n, err := worker.KillAll(pool)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Killed %d worker(s).\n", n)
			return nil
		}

		if err := worker.Kill(pool, args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Killed worker %s\n", args[0])
		return nil
	},
}

func init() {
	workerRunCmd.Flags().StringVar(&workerRunID, "id", "", "worker ID (registered if unknown; generated when empty)")
	workerRunCmd.Flags().StringVar(&workerMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	workerSpawnCmd.Flags().IntVar(&workerSpawnCount, "count", 1, "number of workers to start")

	workerLogsCmd.Flags().IntVar(&workerLogsLines, "lines", 50, "number of lines to capture")

	workerKillCmd.Flags().BoolVar(&workerKillAll, "all", false, "kill all workers")

	workerCmd.AddCommand(workerRunCmd, workerSpawnCmd, workerLogsCmd, workerAttachCmd, workerKillCmd)
	rootCmd.AddCommand(workerCmd)
}

// ensureWorker returns id, registering it first when it is unknown.
func ensureWorker(id string) (string, error) {
	if id != "" {
		w, err := db.GetWorker(pool, id)
		if err != nil {
			return "", err
		}
		if w != nil {
			return id, nil
		}
	} else {
		existing, err := db.ListWorkers(pool)
		if err != nil {
			return "", err
		}
		id = worker.NextID(existing)
	}
	if err := db.RegisterWorker(pool, id, "", ""); err != nil {
		return "", err
	}
	return id, nil
}

func lookupWorker(id string) (*db.Worker, error) {
	w, err := db.GetWorker(pool, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("worker %q not found", id)
	}
	if w.TmuxWindow == "" {
		return nil, fmt.Errorf("worker %q is not running in tmux", id)
	}
	return w, nil
}

// workerEnv is the environment handed to spawned worker windows.
func workerEnv(cfg *config.Config, flagURL string) map[string]string {
	url := flagURL
	if url == "" {
		url = cfg.DatabaseURL
	}
	env := map[string]string{
		"VIGIA_DATABASE_URL":         url,
		"VIGIA_WORKER_POLL_INTERVAL": cfg.WorkerPollInterval.String(),
		"VIGIA_LOG_LEVEL":            cfg.LogLevel,
		"VIGIA_LOG_FORMAT":           cfg.LogFormat,
	}
	if cfg.AnalyzeCmd != "" {
		env["VIGIA_ANALYZE_CMD"] = cfg.AnalyzeCmd
	}
	if cfg.QualityGate != "" {
		env["VIGIA_QUALITY_GATE"] = cfg.QualityGate
	}
	return env
}

// serveMetrics exposes /metrics on addr until the returned func is called.
func serveMetrics(addr string, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
