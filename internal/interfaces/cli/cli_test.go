package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	reconcileapp "github.com/erp/ledgersync/internal/application/reconcile"
	"github.com/erp/ledgersync/internal/domain/reconcile"
)

// MockRunner is a mock implementation of Runner
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) TestConnection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRunner) SyncAll(ctx context.Context, kinds ...reconcile.Kind) (*reconcileapp.RunReport, error) {
	args := m.Called(ctx, kinds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconcileapp.RunReport), args.Error(1)
}

var _ Runner = (*reconcileapp.Runner)(nil)

type harness struct {
	runner     *MockRunner
	opened     *RootOptions
	closed     bool
	openErr    error
	migrated   bool
	migrateErr error
	stdout     bytes.Buffer
	stderr     bytes.Buffer
	rootCmd    *cobra.Command
}

func newHarness() *harness {
	h := &harness{runner: new(MockRunner)}
	h.rootCmd = NewRootCommand(func(_ context.Context, opts *RootOptions) (Runner, func(context.Context) error, error) {
		h.opened = opts
		if h.openErr != nil {
			return nil, nil, h.openErr
		}
		return h.runner, func(context.Context) error {
			h.closed = true
			return nil
		}, nil
	}, func(context.Context, *RootOptions) error {
		h.migrated = true
		return h.migrateErr
	})
	h.rootCmd.SetOut(&h.stdout)
	h.rootCmd.SetErr(&h.stderr)
	return h
}

func (h *harness) run(args ...string) error {
	h.rootCmd.SetArgs(args)
	return h.rootCmd.Execute()
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(nil, nil)
	require.NotNil(t, cmd)
	assert.Equal(t, "ledgersync", cmd.Use)

	for _, name := range []string{"sync", "test-connection", "kinds", "migrate"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand(nil, nil)

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	dryRun := cmd.PersistentFlags().Lookup("dry-run")
	require.NotNil(t, dryRun)
	assert.Equal(t, "false", dryRun.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	h := newHarness()

	err := h.run("kinds", "--format", "yaml")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestKindsCommand(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.run("kinds"))
	assert.Equal(t, "accounts\ncontacts\nproducts\nsales_invoices\npurchase_bills\nsalaries\ntaxes\npayments\n", h.stdout.String())
	assert.Nil(t, h.opened)
}

func sampleReport() *reconcileapp.RunReport {
	return &reconcileapp.RunReport{
		RunID: "run-1",
		Results: []*reconcile.Result{
			{Kind: reconcile.KindContacts, Created: 2, Processed: 2},
			{Kind: reconcile.KindProducts, Updated: 1, Processed: 3, Skipped: 1, Truncated: true},
		},
	}
}

func TestSyncCommand(t *testing.T) {
	t.Run("all kinds in text", func(t *testing.T) {
		h := newHarness()
		h.runner.On("SyncAll", mock.Anything, []reconcile.Kind{}).Return(sampleReport(), nil)

		require.NoError(t, h.run("sync"))

		out := h.stdout.String()
		assert.Contains(t, out, "contacts: 2 created, 0 updated, 2 processed")
		assert.Contains(t, out, "products: 0 created, 1 updated, 3 processed, 1 skipped (truncated)")
		assert.Contains(t, out, "run run-1: 2 created, 1 updated, 5 processed, 1 skipped")
		assert.True(t, h.closed)
		h.runner.AssertExpectations(t)
	})

	t.Run("selected kinds in json", func(t *testing.T) {
		h := newHarness()
		h.runner.On("SyncAll", mock.Anything, []reconcile.Kind{reconcile.KindContacts, reconcile.KindPayments}).
			Return(sampleReport(), nil)

		require.NoError(t, h.run("sync", "parties", "payments", "--format", "json"))

		var resp Response
		require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		data := resp.Data.(map[string]any)
		assert.Equal(t, "run-1", data["run_id"])
		h.runner.AssertExpectations(t)
	})

	t.Run("dry run flag reaches the opener", func(t *testing.T) {
		h := newHarness()
		h.runner.On("SyncAll", mock.Anything, mock.Anything).Return(sampleReport(), nil)

		require.NoError(t, h.run("sync", "--dry-run"))
		require.NotNil(t, h.opened)
		assert.True(t, h.opened.DryRun)
	})

	t.Run("unknown kind never opens a runner", func(t *testing.T) {
		h := newHarness()

		err := h.run("sync", "ledgers")
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.ErrorIs(t, err, reconcile.ErrUnknownKind)
		assert.Contains(t, h.stdout.String(), "Error [UNKNOWN_KIND]")
		assert.Nil(t, h.opened)
	})

	t.Run("kind failures exit with failure", func(t *testing.T) {
		h := newHarness()
		report := sampleReport()
		report.Errors = map[reconcile.Kind]string{reconcile.KindPayments: "rate limited"}
		h.runner.On("SyncAll", mock.Anything, mock.Anything).Return(report, nil)

		err := h.run("sync")
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, h.stdout.String(), "payments: failed: rate limited")
	})

	t.Run("fatal errors", func(t *testing.T) {
		tests := []struct {
			err  error
			code string
		}{
			{fmt.Errorf("%w: missing parasut client_id", reconcile.ErrConfiguration), CodeConfiguration},
			{reconcile.ErrAuthentication, CodeUpstreamAuth},
			{assert.AnError, CodeRunFailed},
		}
		for _, tt := range tests {
			t.Run(tt.code, func(t *testing.T) {
				h := newHarness()
				h.runner.On("SyncAll", mock.Anything, mock.Anything).Return(nil, tt.err)

				err := h.run("sync", "--format", "json")
				assert.Equal(t, ExitCommandError, GetExitCode(err))

				var resp Response
				require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &resp))
				assert.Equal(t, "error", resp.Status)
				assert.Equal(t, tt.code, resp.Error.Code)
				assert.True(t, h.closed)
			})
		}
	})

	t.Run("startup failure", func(t *testing.T) {
		h := newHarness()
		h.openErr = assert.AnError

		err := h.run("sync")
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestTestConnectionCommand(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		h := newHarness()
		h.runner.On("TestConnection", mock.Anything).Return(nil)

		require.NoError(t, h.run("test-connection"))
		assert.Equal(t, "Connection OK\n", h.stdout.String())
	})

	t.Run("rejected credentials", func(t *testing.T) {
		h := newHarness()
		h.runner.On("TestConnection", mock.Anything).Return(reconcile.ErrAuthentication)

		err := h.run("test-connection")
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, h.stdout.String(), "Error [UPSTREAM_AUTH]")
	})
}

func TestMigrateCommand(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		h := newHarness()

		require.NoError(t, h.run("migrate"))
		assert.True(t, h.migrated)
		assert.Equal(t, "Ledger schema up to date\n", h.stdout.String())
	})

	t.Run("failure", func(t *testing.T) {
		h := newHarness()
		h.migrateErr = assert.AnError

		err := h.run("migrate", "--format", "json")
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, h.stdout.String(), "MIGRATION_FAILED")
	})
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "x"))))
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	var out, errOut bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errOut, Verbose: true}

	f.VerboseLog("running %s", "all")

	assert.Empty(t, out.String())
	assert.Equal(t, "running all\n", errOut.String())
}
