package reconcileapp

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/ledgersync/internal/domain/ledger"
	"github.com/erp/ledgersync/internal/domain/reconcile"
	"github.com/erp/ledgersync/internal/infrastructure/logger"
	"github.com/erp/ledgersync/internal/infrastructure/telemetry"
)

// SyncPayments follows up open payables: each one is refetched from the
// endpoint its reference tag points at, and every upstream payment not yet
// registered locally is registered against it. Follow-up calls are paced;
// a 429 ends the loop early and the remaining payables wait for the next
// run. Processed counts the payables checked.
func (s *Service) SyncPayments(ctx context.Context) (*reconcile.Result, error) {
	return s.run(ctx, reconcile.KindPayments, func(ctx context.Context, res *reconcile.Result) error {
		open, err := s.store.Entries().FindOpenPayables(ctx, s.paymentBatchLimit)
		if err != nil {
			return fmt.Errorf("find open payables: %w", err)
		}
		log := logger.L(ctx)
		log.Info("open payables found", zap.Int("count", len(open)))

		pacer := rate.NewLimiter(rate.Every(s.paymentDelay), 1)
		fallback := &fallbackJournal{repo: s.store.Journals()}

		for i := range open {
			if err := pacer.Wait(ctx); err != nil {
				return err
			}
			entry := &open[i]
			err := s.syncEntryPayments(ctx, res, entry, fallback)
			switch {
			case err == nil:
			case reconcile.IsFatal(err):
				return err
			case errors.Is(err, reconcile.ErrRateLimited):
				res.RateLimited = true
				log.Warn("rate limited, stopping payment sync",
					zap.String("ref", entry.Ref),
					zap.Int("remaining", len(open)-i),
				)
				return nil
			default:
				log.Error("payment follow-up failed",
					zap.String("ref", entry.Ref),
					zap.String("external_id", entry.ExternalID),
					zap.Error(err),
				)
			}
			res.Processed++
		}
		return nil
	})
}

func (s *Service) syncEntryPayments(ctx context.Context, res *reconcile.Result, entry *ledger.Entry, fallback *fallbackJournal) error {
	endpoint := reconcile.EndpointForTag(entry.Ref)
	ctx, span := telemetry.StartSpan(ctx, "reconcile", "payment_follow_up",
		telemetry.SpanAttrEndpoint, endpoint,
		telemetry.SpanAttrExternalID, entry.ExternalID,
	)
	defer span.End()

	doc, err := s.source.FetchOne(ctx, endpoint, entry.ExternalID, "payments")
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	idx := reconcile.NewReferenceIndex(doc.Included)
	for _, node := range idx.Related(&doc.Primary, "payments", reconcile.TypePayments) {
		registered, err := s.registerPayment(ctx, entry, node, fallback)
		if err != nil {
			logger.L(ctx).Warn("payment skipped",
				zap.String("ref", entry.Ref),
				zap.String("payment_id", node.ID),
				zap.Error(err),
			)
			res.Skipped++
			continue
		}
		if registered {
			res.Created++
		}
	}
	return nil
}

// registerPayment registers one upstream payment unless it already is.
// It reports whether a payment was registered.
func (s *Service) registerPayment(ctx context.Context, entry *ledger.Entry, node *reconcile.Resource, fallback *fallbackJournal) (bool, error) {
	payments := s.store.Payments()
	if _, err := payments.FindByExternalID(ctx, node.ID); err == nil {
		return false, nil
	} else if !isNotFound(err) {
		return false, err
	}

	attrs, err := reconcile.DecodeAttributes[reconcile.PaymentAttributes](node)
	if err != nil {
		return false, err
	}
	if !attrs.Amount.Valid || !attrs.Amount.Decimal.IsPositive() {
		return false, fmt.Errorf("%w: payment %s has no amount", reconcile.ErrInvalidAttributes, node.ID)
	}

	journal, err := s.paymentJournal(ctx, node, fallback)
	if err != nil {
		return false, err
	}

	payment := &ledger.Payment{
		ExternalID:    node.ID,
		EntryID:       entry.ID,
		JournalID:     journal.ID,
		Amount:        attrs.Amount.Decimal,
		Date:          reconcile.ParseDate(attrs.Date, s.today()),
		Communication: fmt.Sprintf("%s - Pay: %s", entry.Ref, node.ID),
	}
	if err := payments.Register(ctx, payment); err != nil {
		return false, fmt.Errorf("register payment: %w", err)
	}
	logger.L(ctx).Info("payment registered",
		zap.String("ref", entry.Ref),
		zap.String("payment_id", node.ID),
		zap.String("amount", payment.Amount.String()),
	)
	return true, nil
}

// paymentJournal uses the journal linked to the payment's account, falling
// back to the first bank journal
func (s *Service) paymentJournal(ctx context.Context, node *reconcile.Resource, fallback *fallbackJournal) (*ledger.Journal, error) {
	if accountID, ok := node.RelatedID("account"); ok {
		journal, err := s.store.Journals().FindByExternalID(ctx, accountID)
		if err == nil {
			return journal, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}
	return fallback.get(ctx)
}

// fallbackJournal loads the first bank journal once per run
type fallbackJournal struct {
	repo    ledger.JournalRepository
	journal *ledger.Journal
	loaded  bool
}

func (f *fallbackJournal) get(ctx context.Context) (*ledger.Journal, error) {
	if !f.loaded {
		journal, err := f.repo.FindFirstByType(ctx, ledger.JournalTypeBank)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		f.journal, f.loaded = journal, true
	}
	if f.journal == nil {
		return nil, fmt.Errorf("no bank journal for payment: %w", ledger.ErrNotFound)
	}
	return f.journal, nil
}
