package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/otavio/vigia/internal/ce"
	"github.com/otavio/vigia/internal/db"
	"github.com/otavio/vigia/internal/metrics"
)

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Cron daemon for recurring analyses",
}

var (
	cronInterval    time.Duration
	cronMetricsAddr string
)

var cronTickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run the cron tick loop (long-running)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cronInterval <= 0 {
			return fmt.Errorf("--interval must be positive")
		}
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

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cronMetricsAddr != "" {
			stopMetrics := serveMetrics(cronMetricsAddr, logger)
			defer stopMetrics()
		}

		logger.Info("cron: starting tick loop", "interval", cronInterval)
		ticker := time.NewTicker(cronInterval)
		defer ticker.Stop()

		for {
			fireDueSchedules(ctx, logger)

			select {
			case <-ctx.Done():
				logger.Info("cron: stopped")
				return nil
			case <-ticker.C:
			}
		}
	},
}

func fireDueSchedules(ctx context.Context, logger *slog.Logger) {
	schedules, err := db.GetDueSchedules(pool)
	if err != nil {
		logger.Error("cron: fetching due schedules", "error", err)
		return
	}

	for _, s := range schedules {
		now := time.Now()
		next, err := nextRun(s.Cron, now)
		if err != nil {
			logger.Error("cron: bad cron expression", "schedule", s.Name, "error", err)
			continue
		}

		task, err := db.SubmitTask(ctx, pool, s.ComponentKey, ce.TaskTypeReport, s.Branch, nil)
		if err != nil {
			logger.Error("cron: submitting analysis", "schedule", s.Name, "component", s.ComponentKey, "error", err)
			continue
		}
		metrics.SchedulesFired.Inc()
		metrics.TasksSubmitted.Inc()

		if err := db.UpdateScheduleAfterRun(pool, s.Name, now, next); err != nil {
			logger.Error("cron: updating schedule", "schedule", s.Name, "error", err)
		}

		logger.Info("cron: analysis submitted",
			"schedule", s.Name, "component", s.ComponentKey, "task_id", task.ID, "next", next.Format("15:04:05"))
	}
}

func init() {
	cronTickCmd.Flags().DurationVar(&cronInterval, "interval", 30*time.Second, "how often to look for due schedules")
	cronTickCmd.Flags().StringVar(&cronMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cronCmd.AddCommand(cronTickCmd)
	rootCmd.AddCommand(cronCmd)
}
