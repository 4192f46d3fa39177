// Package reconcileapp drives the per-kind synchronization runs: it pages
// through the upstream collections, resolves identities, taxes and line
// prices, and writes the result to the local ledger.
package reconcileapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/ledgersync/internal/domain/ledger"
	"github.com/erp/ledgersync/internal/domain/reconcile"
	"github.com/erp/ledgersync/internal/infrastructure/logger"
	"github.com/erp/ledgersync/internal/infrastructure/telemetry"
)

const (
	// DefaultPaymentBatchLimit caps the open payables checked per run
	DefaultPaymentBatchLimit = 50
	// DefaultPaymentDelay spaces payment follow-up calls
	DefaultPaymentDelay = 500 * time.Millisecond
)

// Service runs synchronization for every kind against one upstream company
// and one ledger. It is not safe for concurrent runs.
type Service struct {
	source reconcile.Source
	store  ledger.Store
	policy reconcile.ChartPolicy

	journals *reconcile.IdentityResolver[ledger.Journal]
	parties  *reconcile.IdentityResolver[ledger.Party]
	products *reconcile.IdentityResolver[ledger.Product]
	taxes    *reconcile.TaxResolver

	paymentBatchLimit int
	paymentDelay      time.Duration
	logger            *zap.Logger
	now               func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the base logger; run loggers derive from it
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithChartPolicy replaces the default chart-of-accounts mapping
func WithChartPolicy(p reconcile.ChartPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithPaymentBatchLimit caps the open payables checked per payment run
func WithPaymentBatchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.paymentBatchLimit = n
		}
	}
}

// WithPaymentDelay sets the pause between payment follow-up calls
func WithPaymentDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.paymentDelay = d
		}
	}
}

// WithClock overrides the clock used for date defaults
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a synchronization service
func NewService(source reconcile.Source, store ledger.Store, opts ...Option) *Service {
	s := &Service{
		source:            source,
		store:             store,
		policy:            reconcile.NewUniformChartPolicy(),
		paymentBatchLimit: DefaultPaymentBatchLimit,
		paymentDelay:      DefaultPaymentDelay,
		logger:            zap.NewNop(),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("reconcile")
	s.journals = reconcile.NewIdentityResolver[ledger.Journal](store.Journals())
	s.parties = reconcile.NewIdentityResolver[ledger.Party](store.Parties())
	s.products = reconcile.NewIdentityResolver[ledger.Product](store.Products())
	s.taxes = reconcile.NewTaxResolver(store.Taxes(), store.Chart(), s.policy)
	return s
}

// Kinds returns every synchronizable kind in run order
func (s *Service) Kinds() []reconcile.Kind {
	return reconcile.Kinds()
}

// TestConnection checks credentials with a token exchange only
func (s *Service) TestConnection(ctx context.Context) error {
	return s.source.TestConnection(ctx)
}

// Sync runs the orchestrator of one kind
func (s *Service) Sync(ctx context.Context, kind reconcile.Kind) (*reconcile.Result, error) {
	switch kind {
	case reconcile.KindAccounts:
		return s.SyncAccounts(ctx)
	case reconcile.KindContacts:
		return s.SyncContacts(ctx)
	case reconcile.KindProducts:
		return s.SyncProducts(ctx)
	case reconcile.KindSalesInvoices:
		return s.SyncSalesInvoices(ctx)
	case reconcile.KindPurchaseBills:
		return s.SyncPurchaseBills(ctx)
	case reconcile.KindSalaries:
		return s.SyncSalaries(ctx)
	case reconcile.KindTaxes:
		return s.SyncTaxes(ctx)
	case reconcile.KindPayments:
		return s.SyncPayments(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", reconcile.ErrUnknownKind, kind)
	}
}

// SyncAll runs the given kinds, or every kind when none are given, in
// dependency order. A fatal error aborts the remaining kinds; any other
// failure is recorded and the run moves on.
func (s *Service) SyncAll(ctx context.Context, kinds ...reconcile.Kind) (*RunReport, error) {
	ctx = s.withRun(ctx)
	report := newRunReport(logger.GetRunID(ctx), s.now())

	for _, kind := range orderKinds(kinds) {
		result, err := s.Sync(ctx, kind)
		if result != nil {
			report.add(result)
		}
		if err != nil {
			report.fail(kind, err)
			if reconcile.IsFatal(err) {
				report.finish(s.now())
				return report, err
			}
		}
	}
	report.finish(s.now())
	logger.L(ctx).Info("sync run finished",
		zap.Int("kinds", len(report.Results)),
		zap.Int("failed", len(report.Errors)),
		zap.Bool("truncated", report.Truncated()),
	)
	return report, nil
}

// orderKinds returns the requested kinds deduplicated in run order
func orderKinds(kinds []reconcile.Kind) []reconcile.Kind {
	if len(kinds) == 0 {
		return reconcile.Kinds()
	}
	want := make(map[reconcile.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var ordered []reconcile.Kind
	for _, k := range reconcile.Kinds() {
		if want[k] {
			ordered = append(ordered, k)
		}
	}
	return ordered
}

// withRun attaches a run id and logger unless the context already has one
func (s *Service) withRun(ctx context.Context) context.Context {
	if logger.GetRunID(ctx) != "" {
		return ctx
	}
	base := logger.FromContext(ctx)
	if _, ok := ctx.Value(logger.LoggerKey).(*zap.Logger); !ok {
		base = s.logger
	}
	ctx, _ = logger.WithRunID(ctx, base, uuid.NewString())
	return ctx
}

// run wraps one orchestrator with its span, logger and timing
func (s *Service) run(ctx context.Context, kind reconcile.Kind, fn func(ctx context.Context, res *reconcile.Result) error) (*reconcile.Result, error) {
	ctx = s.withRun(ctx)
	ctx, span := telemetry.StartSpan(ctx, "reconcile", "sync_"+string(kind),
		telemetry.SpanAttrKind, string(kind),
	)
	defer span.End()
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("kind", string(kind))))

	start := time.Now()
	res := reconcile.NewResult(kind)
	err := fn(ctx, res)
	res.Duration = time.Since(start)

	telemetry.SetAttributes(span,
		telemetry.SpanAttrCreated, res.Created,
		telemetry.SpanAttrUpdated, res.Updated,
		telemetry.SpanAttrProcessed, res.Processed,
		telemetry.SpanAttrTruncated, res.Truncated,
	)
	log := logger.L(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		log.Error("sync failed", zap.Error(err))
		return res, err
	}
	log.Info("sync finished",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Bool("truncated", res.Truncated),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// fetch pages through a collection and flags the result when it was cut short
func (s *Service) fetch(ctx context.Context, res *reconcile.Result, resourceType string, query reconcile.Query) ([]reconcile.Batch, error) {
	fetched, err := s.source.FetchAll(ctx, resourceType, query)
	if err != nil {
		return nil, err
	}
	if fetched.Truncated {
		res.Truncated = true
		fields := []zap.Field{zap.String("endpoint", resourceType), zap.Int("pages", fetched.Pages)}
		if fetched.Err != nil {
			fields = append(fields, zap.Error(fetched.Err))
		}
		logger.L(ctx).Warn("fetch truncated, continuing with partial data", fields...)
	}
	return fetched.Batches, nil
}

// skip records a record that could not be synchronized
func skip(ctx context.Context, res *reconcile.Result, item *reconcile.Resource, err error) {
	res.Skipped++
	logger.L(ctx).Warn("record skipped",
		zap.String("type", item.Type),
		zap.String("external_id", item.ID),
		zap.Error(err),
	)
}

// isNotFound reports a store miss
func isNotFound(err error) bool {
	return errors.Is(err, ledger.ErrNotFound)
}
