// Package cli implements the ledgersync command line for one-shot runs
// started by cron or another external scheduler.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	reconcileapp "github.com/erp/ledgersync/internal/application/reconcile"
	"github.com/erp/ledgersync/internal/domain/reconcile"
)

// Runner is the part of the sync runner the commands use
type Runner interface {
	TestConnection(ctx context.Context) error
	SyncAll(ctx context.Context, kinds ...reconcile.Kind) (*reconcileapp.RunReport, error)
}

// OpenFunc builds a runner for one command and returns its cleanup
type OpenFunc func(ctx context.Context, opts *RootOptions) (Runner, func(context.Context) error, error)

// MigrateFunc creates or updates the ledger schema
type MigrateFunc func(ctx context.Context, opts *RootOptions) error

// RootOptions holds global flags for all commands
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	DryRun  bool

	Open    OpenFunc
	Migrate MigrateFunc
}

// ValidFormats defines the allowed output formats
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command
func NewRootCommand(open OpenFunc, migrate MigrateFunc) *cobra.Command {
	opts := &RootOptions{Open: open, Migrate: migrate}

	cmd := &cobra.Command{
		Use:   "ledgersync",
		Short: "Synchronize Parasut records into the local ledger",
		Long: `ledgersync pulls accounts, contacts, products, invoices, bills, salaries,
taxes and payments from Parasut and reconciles them into the local ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVar(&opts.DryRun, "dry-run", false, "write to an in-memory ledger that is discarded on exit")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewTestConnectionCommand(opts))
	cmd.AddCommand(NewKindsCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// formatter builds the output formatter of a command
func formatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// withRunner opens a runner, calls fn and always runs the cleanup
func withRunner(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, r Runner) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runner, cleanup, err := opts.Open(ctx, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "startup failed", err)
	}
	defer func() {
		if cleanup != nil {
			_ = cleanup(context.Background())
		}
	}()

	return fn(ctx, runner)
}
