package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/otavio/vigia/internal/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API used by remote navigators (long-running)",
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

		addr := serveAddr
		if addr == "" {
			addr = cfg.ServerAddr
		}

		server := &http.Server{
			Addr:         addr,
			Handler:      api.NewRouter(api.NewPostgresBackend(pool), logger),
			ReadTimeout:  cfg.HTTPTimeout,
			WriteTimeout: cfg.HTTPTimeout,
			IdleTimeout:  cfg.HTTPTimeout,
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server starting", "address", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("serving %s: %w", addr, err)
		case <-ctx.Done():
		}
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		logger.Info("server stopped gracefully")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides VIGIA_SERVER_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
