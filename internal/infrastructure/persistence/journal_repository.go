package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/erp/ledgersync/internal/domain/ledger"
	"github.com/erp/ledgersync/internal/infrastructure/persistence/models"
)

// GormJournalRepository implements ledger.JournalRepository using GORM
type GormJournalRepository struct {
	db *gorm.DB
}

// NewGormJournalRepository creates a new GormJournalRepository
func NewGormJournalRepository(db *gorm.DB) *GormJournalRepository {
	return &GormJournalRepository{db: db}
}

func (r *GormJournalRepository) find(ctx context.Context, query string, args ...any) (*ledger.Journal, error) {
	model, err := findFirst[models.JournalModel](ctx, r.db, query, args...)
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByExternalID finds the journal linked to an upstream account
func (r *GormJournalRepository) FindByExternalID(ctx context.Context, externalID string) (*ledger.Journal, error) {
	return r.find(ctx, "external_id = ?", externalID)
}

// FindByNaturalKey finds a journal by its code
func (r *GormJournalRepository) FindByNaturalKey(ctx context.Context, code string) (*ledger.Journal, error) {
	return r.find(ctx, "code = ?", code)
}

// FindByName finds the oldest journal with the exact name
func (r *GormJournalRepository) FindByName(ctx context.Context, name string) (*ledger.Journal, error) {
	return r.find(ctx, "name = ?", name)
}

// FindFirstByType returns the oldest journal of the given type
func (r *GormJournalRepository) FindFirstByType(ctx context.Context, journalType ledger.JournalType) (*ledger.Journal, error) {
	return r.find(ctx, "type = ?", journalType)
}

// LinkExternalID stores the upstream id on the journal
func (r *GormJournalRepository) LinkExternalID(ctx context.Context, journal *ledger.Journal, externalID string) error {
	journal.ExternalID = externalID
	return r.Update(ctx, journal)
}

// ListCodes returns every journal code in use
func (r *GormJournalRepository) ListCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.WithContext(ctx).
		Model(&models.JournalModel{}).
		Pluck("code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

// Create persists a new journal
func (r *GormJournalRepository) Create(ctx context.Context, journal *ledger.Journal) error {
	model := models.JournalFromDomain(journal)
	model.EnsureID()
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	journal.ID = model.ID
	journal.CreatedAt = model.CreatedAt
	journal.UpdatedAt = model.UpdatedAt
	return nil
}

// Update saves every field of an existing journal
func (r *GormJournalRepository) Update(ctx context.Context, journal *ledger.Journal) error {
	return saveExisting(ctx, r.db, models.JournalFromDomain(journal))
}

var _ ledger.JournalRepository = (*GormJournalRepository)(nil)
