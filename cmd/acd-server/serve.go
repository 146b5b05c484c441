package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the schema and serve the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(cfg)
		if err != nil {
			glog.Exitf("Failed to open database: %v", err)
		}
		defer func() { _ = a.close() }()

		if err := a.migrate(ctx); err != nil {
			glog.Exitf("Failed to migrate database: %v", err)
		}
		if cfg.Seed.Enabled {
			if _, err := a.seed(ctx); err != nil {
				glog.Exitf("Failed to seed database: %v", err)
			}
		}

		a.logger.Info("starting acd-registry server",
			"listen", cfg.Server.Listen,
			"db", cfg.DB.Type,
			"cache", cfg.Cache.Enabled,
			"strict_transitions", cfg.Lifecycle.StrictTransitions,
		)

		httpServer := &http.Server{
			Addr:    cfg.Server.Listen,
			Handler: a.newHandler(),
		}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				glog.Fatalf("HTTP server error: %v", err)
			}
		}()

		<-ctx.Done()
		a.logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP server shutdown error", "error", err)
		}
		a.logger.Info("acd-registry server stopped")
		return nil
	},
}
