package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/ledgersync/internal/domain/ledger"
	"github.com/erp/ledgersync/internal/infrastructure/persistence/models"
)

// GormEntryRepository implements ledger.EntryRepository using GORM
type GormEntryRepository struct {
	db *gorm.DB
}

// NewGormEntryRepository creates a new GormEntryRepository
func NewGormEntryRepository(db *gorm.DB) *GormEntryRepository {
	return &GormEntryRepository{db: db}
}

// withLines preloads entry lines in their original order
func withLines(db *gorm.DB) *gorm.DB {
	return db.Preload("Lines", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position")
	})
}

// FindByID finds an entry with its lines
func (r *GormEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	var model models.EntryModel
	if err := withLines(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}

// FindByExternalID finds an entry by kind and upstream id
func (r *GormEntryRepository) FindByExternalID(ctx context.Context, kind ledger.EntryKind, externalID string) (*ledger.Entry, error) {
	var model models.EntryModel
	if err := withLines(r.db.WithContext(ctx)).
		Where("kind = ? AND external_id = ?", kind, externalID).
		Order("created_at").
		First(&model).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}

// Create persists an entry and its lines. New entries default to draft and
// not paid.
func (r *GormEntryRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	if err := ledger.ValidateEntry(entry); err != nil {
		return err
	}
	if entry.State == "" {
		entry.State = ledger.EntryStateDraft
	}
	if entry.PaymentState == "" {
		entry.PaymentState = ledger.PaymentStateNotPaid
	}

	model := models.EntryFromDomain(entry)
	model.EnsureID()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Lines").Create(model).Error; err != nil {
			return err
		}
		lines := models.LinesFromDomain(model.ID, entry.Lines)
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		entry.ID = model.ID
		entry.CreatedAt = model.CreatedAt
		entry.UpdatedAt = model.UpdatedAt
		return nil
	})
}

// Update overwrites the header and replaces all lines atomically. The
// payment state is recomputed against the new lines from the payments
// already registered.
func (r *GormEntryRepository) Update(ctx context.Context, entry *ledger.Entry) error {
	if err := ledger.ValidateEntry(entry); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paid, err := paidAmount(tx, entry.ID)
		if err != nil {
			return err
		}
		entry.PaymentState = entry.SettlementState(paid)
		if err := saveExisting(ctx, tx, models.EntryFromDomain(entry)); err != nil {
			return err
		}
		if err := tx.Where("entry_id = ?", entry.ID).Delete(&models.EntryLineModel{}).Error; err != nil {
			return err
		}
		lines := models.LinesFromDomain(entry.ID, entry.Lines)
		return tx.Create(&lines).Error
	})
}

func (r *GormEntryRepository) setState(ctx context.Context, id uuid.UUID, state ledger.EntryState) error {
	result := r.db.WithContext(ctx).
		Model(&models.EntryModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"state": state, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// SetDraft moves an entry back to draft
func (r *GormEntryRepository) SetDraft(ctx context.Context, id uuid.UUID) error {
	return r.setState(ctx, id, ledger.EntryStateDraft)
}

// Post marks an entry as posted
func (r *GormEntryRepository) Post(ctx context.Context, id uuid.UUID) error {
	return r.setState(ctx, id, ledger.EntryStatePosted)
}

// FindOpenPayables returns posted, linked, not fully paid entries of payable
// kinds, oldest first
func (r *GormEntryRepository) FindOpenPayables(ctx context.Context, limit int) ([]ledger.Entry, error) {
	query := withLines(r.db.WithContext(ctx)).
		Where("kind IN ?", ledger.PayableKinds()).
		Where("state = ?", ledger.EntryStatePosted).
		Where("external_id <> ''").
		Where("payment_state IN ?", []ledger.PaymentState{ledger.PaymentStateNotPaid, ledger.PaymentStatePartial, ""}).
		Order("created_at")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.EntryModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]ledger.Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, *rows[i].ToDomain())
	}
	return entries, nil
}

var _ ledger.EntryRepository = (*GormEntryRepository)(nil)
