package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/erp/ledgersync/internal/bootstrap"
	"github.com/erp/ledgersync/internal/infrastructure/config"
	"github.com/erp/ledgersync/internal/infrastructure/logger"
	"github.com/erp/ledgersync/internal/interfaces/cli"
)

func main() {
	cmd := cli.NewRootCommand(open, migrate)
	if err := cmd.Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}

// load reads configuration and builds a logger that keeps stdout free for
// command output
func load(opts *cli.RootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if opts.DryRun {
		cfg.Ledger.Driver = "memory"
	}

	logCfg := logger.FromSettings(cfg.Log)
	if logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}
	if opts.Verbose {
		logCfg.Level = "debug"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func open(ctx context.Context, opts *cli.RootOptions) (cli.Runner, func(context.Context) error, error) {
	cfg, log, err := load(opts)
	if err != nil {
		return nil, nil, err
	}
	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		_ = logger.Sync(log)
		return nil, nil, err
	}
	return app.Runner, func(ctx context.Context) error {
		defer func() { _ = logger.Sync(log) }()
		return app.Close(ctx)
	}, nil
}

func migrate(_ context.Context, opts *cli.RootOptions) error {
	cfg, log, err := load(opts)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync(log) }()
	return bootstrap.MigrateLedger(cfg, log)
}
