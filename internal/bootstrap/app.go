// Package bootstrap wires configuration, storage, the upstream client and
// the sync runner into one App shared by the server and the CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	reconcileapp "github.com/erp/ledgersync/internal/application/reconcile"
	"github.com/erp/ledgersync/internal/domain/ledger"
	"github.com/erp/ledgersync/internal/infrastructure/cache"
	"github.com/erp/ledgersync/internal/infrastructure/config"
	"github.com/erp/ledgersync/internal/infrastructure/logger"
	"github.com/erp/ledgersync/internal/infrastructure/parasut"
	"github.com/erp/ledgersync/internal/infrastructure/persistence"
	"github.com/erp/ledgersync/internal/infrastructure/persistence/memstore"
	"github.com/erp/ledgersync/internal/infrastructure/telemetry"
)

// App holds the long-lived components of one process
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Store  ledger.Store
	Runner *reconcileapp.Runner

	tracer *telemetry.TracerProvider
	db     *persistence.Database
	tokens cache.TokenCache
}

// New builds the App. On error every component opened so far is closed.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	app := &App{Config: cfg, Logger: log}
	if err := app.wire(ctx); err != nil {
		_ = app.Close(context.Background())
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config
	var err error

	a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, a.Logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	if err := a.openStore(); err != nil {
		return err
	}

	a.tokens, err = cache.NewTokenCacheFactory(cfg.TokenCache, cache.WithLogger(a.Logger)).CreateCache()
	if err != nil {
		return fmt.Errorf("token cache: %w", err)
	}

	client := parasut.NewClient(parasut.ConfigFrom(cfg.Parasut), a.tokens, parasut.WithLogger(a.Logger))
	if missing := cfg.Parasut.MissingCredentials(); len(missing) > 0 {
		a.Logger.Warn("Parasut credentials incomplete, runs will be rejected", zap.Strings("missing", missing))
	}

	svc := reconcileapp.NewService(client, a.Store,
		reconcileapp.WithLogger(a.Logger),
		reconcileapp.WithPaymentBatchLimit(cfg.Sync.PaymentBatchLimit),
		reconcileapp.WithPaymentDelay(cfg.Sync.PaymentDelay),
	)
	a.Runner = reconcileapp.NewRunner(svc)
	return nil
}

func (a *App) openStore() error {
	cfg := a.Config.Ledger
	if cfg.Driver == "memory" {
		a.Logger.Warn("Using in-memory ledger, nothing will be persisted")
		a.Store = memstore.New()
		return nil
	}

	db, err := persistence.NewDatabase(&cfg, gormLogger(a.Config, a.Logger))
	if err != nil {
		return fmt.Errorf("ledger database: %w", err)
	}
	a.db = db

	if cfg.AutoMigrate {
		if err := db.Migrate(); err != nil {
			return err
		}
		a.Logger.Info("Ledger schema migrated")
	}
	a.Store = persistence.NewLedgerStore(db.DB)
	a.Logger.Info("Ledger database connected", zap.String("driver", cfg.Driver))
	return nil
}

func gormLogger(cfg *config.Config, log *zap.Logger) *logger.GormLogger {
	return logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Ledger.SlowQuery))
}

// Ping checks the ledger database. The in-memory ledger is always up.
func (a *App) Ping() error {
	if a.db == nil {
		return nil
	}
	return a.db.Ping()
}

// LedgerDriver names the configured ledger backend
func (a *App) LedgerDriver() string {
	return a.Config.Ledger.Driver
}

// Close releases every component in reverse order of creation
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if closer, ok := a.tokens.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("token cache: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("ledger database: %w", err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MigrateLedger creates or updates the ledger tables without starting the
// rest of the App. The in-memory driver has no schema.
func MigrateLedger(cfg *config.Config, log *zap.Logger) error {
	if cfg.Ledger.Driver == "memory" {
		return nil
	}
	db, err := persistence.NewDatabase(&cfg.Ledger, gormLogger(cfg, log))
	if err != nil {
		return fmt.Errorf("ledger database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return err
	}
	log.Info("Ledger schema migrated", zap.String("driver", cfg.Ledger.Driver))
	return nil
}
