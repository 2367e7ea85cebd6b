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

	"journal-backend/internal/api"
	"journal-backend/internal/config"
	"journal-backend/internal/database"
	"journal-backend/internal/email"
	"journal-backend/internal/jobs"
	"journal-backend/internal/logging"
	"journal-backend/internal/metrics"
	"journal-backend/internal/notify"
	"journal-backend/internal/storage"
	"journal-backend/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	st := store.NewPostgres(db, logger)
	m := metrics.New()
	dispatcher := notify.NewDispatcher(st, email.NewEmailSender(cfg, logger), logger, m)

	files, err := storage.New(ctx, cfg)
	if err != nil {
		// uploads are optional; the endpoint answers 503 without storage
		logger.Warn("file storage unavailable", zap.Error(err))
		files = nil
	}

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(cfg.Jobs, st, dispatcher, logger, m)
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("start reminder jobs: %w", err)
		}
	}

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	api.SetupRoutes(router, api.NewServer(api.Deps{
		Store:    st,
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Notifier: dispatcher,
		Files:    files,
	}))

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.HTTP.RequestTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("journal", cfg.Journal.Name))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	dispatcher.Wait()
	return nil
}
