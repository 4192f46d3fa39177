package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	reconcileapp "github.com/erp/ledgersync/internal/application/reconcile"
	"github.com/erp/ledgersync/internal/domain/reconcile"
)

// Error codes shown in CLI output
const (
	CodeUnknownKind   = "UNKNOWN_KIND"
	CodeConfiguration = "CONFIGURATION"
	CodeUpstreamAuth  = "UPSTREAM_AUTH"
	CodeRunFailed     = "RUN_FAILED"
	CodeKindsFailed   = "KINDS_FAILED"
)

// NewSyncCommand creates the sync command
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [kind...]",
		Short: "Run synchronization for some or all kinds",
		Long: `Run synchronization in dependency order. Without arguments every kind runs.

Kinds: accounts, contacts (alias parties), products, sales_invoices,
purchase_bills, salaries, taxes, payments.

Example:
  ledgersync sync
  ledgersync sync contacts products --format json
  ledgersync sync payments --dry-run -v`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, opts)

			kinds, err := parseKinds(args)
			if err != nil {
				_ = out.Error(CodeUnknownKind, err.Error(), nil)
				return WrapExitError(ExitCommandError, "invalid arguments", err)
			}

			return withRunner(cmd, opts, func(ctx context.Context, r Runner) error {
				return runSync(ctx, r, kinds, out)
			})
		},
	}
}

func parseKinds(args []string) ([]reconcile.Kind, error) {
	kinds := make([]reconcile.Kind, 0, len(args))
	for _, arg := range args {
		kind, err := reconcile.ParseKind(arg)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func runSync(ctx context.Context, r Runner, kinds []reconcile.Kind, out *OutputFormatter) error {
	out.VerboseLog("running kinds: %v", kindNames(kinds))

	report, err := r.SyncAll(ctx, kinds...)
	if err != nil {
		_ = out.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "sync aborted", err)
	}

	if err := out.Success(report, func(w io.Writer) { writeReport(w, report) }); err != nil {
		return err
	}
	if len(report.Errors) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d kind(s) failed", len(report.Errors)))
	}
	return nil
}

// errorCode names a fatal run error for the output
func errorCode(err error) string {
	switch {
	case errors.Is(err, reconcile.ErrConfiguration):
		return CodeConfiguration
	case errors.Is(err, reconcile.ErrAuthentication):
		return CodeUpstreamAuth
	}
	return CodeRunFailed
}

func writeReport(w io.Writer, report *reconcileapp.RunReport) {
	for _, res := range report.Results {
		fmt.Fprintln(w, res.String())
	}
	for _, kind := range slices.Sorted(maps.Keys(report.Errors)) {
		fmt.Fprintf(w, "%s: failed: %s\n", kind, report.Errors[kind])
	}
	total := report.Totals()
	fmt.Fprintf(w, "run %s: %d created, %d updated, %d processed, %d skipped\n",
		report.RunID, total.Created, total.Updated, total.Processed, total.Skipped)
}

func kindNames(kinds []reconcile.Kind) string {
	if len(kinds) == 0 {
		return "all"
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ",")
}
