package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/erp/ledgersync/internal/bootstrap"
	"github.com/erp/ledgersync/internal/infrastructure/config"
	"github.com/erp/ledgersync/internal/infrastructure/logger"
	"github.com/erp/ledgersync/internal/interfaces/http/handler"
)

//	@title			Ledgersync API
//	@version		1.0
//	@description	Pulls Parasut accounting data into the local ledger

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.FromSettings(cfg.Log))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting ledgersync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", handler.Version),
	)

	app, err := bootstrap.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Close(ctx); err != nil {
			log.Error("Failed to release resources", zap.Error(err))
		}
	}()

	// Background runs are optional; the jobs endpoints exist only with them
	var jobs handler.JobScheduler
	if cfg.Scheduler.Enabled {
		syncScheduler, err := app.NewScheduler()
		if err != nil {
			log.Fatal("Failed to create sync scheduler", zap.Error(err))
		}
		if err := syncScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.JobTimeout)
			defer cancel()
			if err := syncScheduler.Stop(ctx); err != nil {
				log.Error("Failed to stop sync scheduler", zap.Error(err))
			}
		}()
		jobs = syncScheduler
		log.Info("Sync scheduler started", zap.Duration("interval", cfg.Scheduler.Interval))
	}

	srv := app.NewServer(app.NewEngine(jobs))

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
