package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/erp/ledgersync/internal/domain/ledger"
	"github.com/erp/ledgersync/internal/infrastructure/persistence/models"
)

// GormPaymentRepository implements ledger.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByExternalID finds a payment by its upstream id
func (r *GormPaymentRepository) FindByExternalID(ctx context.Context, externalID string) (*ledger.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		Order("created_at").
		First(&model).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}

// ListByEntry returns the payments of one entry by payment date
func (r *GormPaymentRepository) ListByEntry(ctx context.Context, entryID uuid.UUID) ([]ledger.Payment, error) {
	var rows []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("entry_id = ?", entryID).
		Order("date, created_at").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	payments := make([]ledger.Payment, 0, len(rows))
	for i := range rows {
		payments = append(payments, *rows[i].ToDomain())
	}
	return payments, nil
}

// Register stores the payment and recomputes the entry's payment state in
// the same transaction
func (r *GormPaymentRepository) Register(ctx context.Context, payment *ledger.Payment) error {
	if err := ledger.ValidatePayment(payment); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.EntryModel
		if err := withLines(tx).Where("id = ?", payment.EntryID).First(&entry).Error; err != nil {
			return translate(err)
		}

		if payment.ID == uuid.Nil {
			payment.ID = uuid.New()
		}
		if payment.CreatedAt.IsZero() {
			payment.CreatedAt = time.Now()
		}
		if err := tx.Create(models.PaymentFromDomain(payment)).Error; err != nil {
			return err
		}

		paid, err := paidAmount(tx, payment.EntryID)
		if err != nil {
			return err
		}

		state := entry.ToDomain().SettlementState(paid)
		return tx.Model(&models.EntryModel{}).
			Where("id = ?", payment.EntryID).
			Updates(map[string]any{"payment_state": state, "updated_at": time.Now()}).Error
	})
}

// paidAmount sums the payments registered against an entry
func paidAmount(tx *gorm.DB, entryID uuid.UUID) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := tx.Model(&models.PaymentModel{}).
		Where("entry_id = ?", entryID).
		Pluck("amount", &amounts).Error; err != nil {
		return decimal.Zero, err
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}

var _ ledger.PaymentRepository = (*GormPaymentRepository)(nil)
