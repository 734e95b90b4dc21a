package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/creamcroissant/orderdesk/internal/api"
	"github.com/creamcroissant/orderdesk/internal/bootstrap"
	"github.com/creamcroissant/orderdesk/internal/job"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin API and background jobs",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg, logger := app.Config, app.Logger
	switch app.SigningKeySource {
	case bootstrap.SigningKeySourceGenerated:
		logger.Info("jwt signing key generated", "source", "generated-and-persisted")
	default:
		logger.Info("jwt signing key loaded", "source", string(app.SigningKeySource))
	}

	scheduler := job.NewScheduler(logger.With("component", "scheduler"))
	if _, err := scheduler.Register(cfg.Jobs.WatchRefresh, job.NewWatchRefreshJob(app.Watches, logger)); err != nil {
		return err
	}
	if _, err := scheduler.Register(cfg.Jobs.AuditCleanup, job.NewAuditCleanupJob(app.Audits, cfg.Audit.Retention, logger)); err != nil {
		return err
	}
	scheduler.Start()

	router := api.NewRouter(
		logger,
		api.Services{
			Orders:  app.Orders,
			Watches: app.Watches,
			Audits:  app.Audits,
			Catalog: app.Catalog,
			I18n:    app.I18n,
			Tokens:  app.Tokens,
			Ready:   app.Ready,
		},
		api.Options{
			HTTP:         cfg.HTTP,
			Metrics:      cfg.Metrics,
			ForwardToken: cfg.OrderService.ForwardToken,
			Registry:     app.Registry,
		},
	)
	server := bootstrap.NewHTTPServer(cfg.HTTP, router)

	go func() {
		logger.Info("http server starting", "addr", cfg.HTTP.Addr, "order_service", cfg.OrderService.BaseURL, "config", cfg.ConfigFile)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down http server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server exited cleanly")
	return nil
}
