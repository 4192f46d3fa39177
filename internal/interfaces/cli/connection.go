package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/erp/ledgersync/internal/domain/reconcile"
)

// NewTestConnectionCommand creates the test-connection command
func NewTestConnectionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Check the Parasut credentials without fetching data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, opts)
			return withRunner(cmd, opts, func(ctx context.Context, r Runner) error {
				if err := r.TestConnection(ctx); err != nil {
					_ = out.Error(errorCode(err), err.Error(), nil)
					return WrapExitError(ExitCommandError, "connection test failed", err)
				}
				return out.Success(map[string]bool{"connected": true}, func(w io.Writer) {
					fmt.Fprintln(w, "Connection OK")
				})
			})
		},
	}
}

// NewKindsCommand creates the kinds command
func NewKindsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the kinds in run order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := reconcile.Kinds()
			return formatter(cmd, opts).Success(kinds, func(w io.Writer) {
				for _, k := range kinds {
					fmt.Fprintln(w, k)
				}
			})
		},
	}
}

// NewMigrateCommand creates the migrate command
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the ledger tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, opts)
			if err := opts.Migrate(cmd.Context(), opts); err != nil {
				_ = out.Error("MIGRATION_FAILED", err.Error(), nil)
				return WrapExitError(ExitCommandError, "migration failed", err)
			}
			return out.Success(map[string]bool{"migrated": true}, func(w io.Writer) {
				fmt.Fprintln(w, "Ledger schema up to date")
			})
		},
	}
}
