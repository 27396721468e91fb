package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/witnz/landledger/internal/api"
	"github.com/witnz/landledger/internal/verify"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP registry with periodic verification",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		interval, err := cfg.Verify.IntervalDuration()
		if err != nil {
			return err
		}
		verifier := verify.NewChainVerifier(a.registry, interval, logger)
		verifier.Start(ctx)
		defer verifier.Stop()

		if os.Getenv("GIN_MODE") == "" {
			gin.SetMode(gin.ReleaseMode)
		}
		handler := api.NewHandler(a.registry, verifier, logger)
		router := api.NewRouter(ctx, api.RouterConfig{
			CORSOrigins:    cfg.Server.CORSOrigins,
			RateLimitRPS:   cfg.Server.RateLimitRPS,
			RateLimitBurst: cfg.Server.RateLimitBurst,
		}, handler, logger)

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("Registry HTTP listening", "addr", cfg.Server.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("http server failed: %w", err)
			}
		}

		logger.Info("Shutting down registry")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error", "error", err)
		}

		if cfg.Snapshot.ExportPath != "" {
			if _, err := a.exportSnapshot(cfg.Snapshot.ExportPath); err != nil {
				logger.Error("Snapshot export failed", "error", err)
				if alertErr := a.alerts.SendSystemAlert(shutdownCtx, "Snapshot export failed", err.Error(), "warning"); alertErr != nil {
					logger.Warn("Failed to send system alert", "error", alertErr)
				}
			}
		}

		logger.Info("Registry stopped")
		return nil
	},
}
