package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/erp/ledgersync/internal/domain/ledger"
	"github.com/erp/ledgersync/internal/infrastructure/persistence/models"
)

// GormPartyRepository implements ledger.PartyRepository using GORM
type GormPartyRepository struct {
	db *gorm.DB
}

// NewGormPartyRepository creates a new GormPartyRepository
func NewGormPartyRepository(db *gorm.DB) *GormPartyRepository {
	return &GormPartyRepository{db: db}
}

func (r *GormPartyRepository) find(ctx context.Context, query string, args ...any) (*ledger.Party, error) {
	model, err := findFirst[models.PartyModel](ctx, r.db, query, args...)
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByExternalID finds the party linked to an upstream contact or employee
func (r *GormPartyRepository) FindByExternalID(ctx context.Context, externalID string) (*ledger.Party, error) {
	return r.find(ctx, "external_id = ?", externalID)
}

// FindByNaturalKey finds a party by tax number
func (r *GormPartyRepository) FindByNaturalKey(ctx context.Context, taxNumber string) (*ledger.Party, error) {
	return r.find(ctx, "tax_number = ?", taxNumber)
}

// FindByName finds the oldest party with the exact name
func (r *GormPartyRepository) FindByName(ctx context.Context, name string) (*ledger.Party, error) {
	return r.find(ctx, "name = ?", name)
}

// LinkExternalID stores the upstream id on the party
func (r *GormPartyRepository) LinkExternalID(ctx context.Context, party *ledger.Party, externalID string) error {
	party.ExternalID = externalID
	return r.Update(ctx, party)
}

// Create persists a new party
func (r *GormPartyRepository) Create(ctx context.Context, party *ledger.Party) error {
	model := models.PartyFromDomain(party)
	model.EnsureID()
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	party.ID = model.ID
	party.CreatedAt = model.CreatedAt
	party.UpdatedAt = model.UpdatedAt
	return nil
}

// Update saves every field of an existing party
func (r *GormPartyRepository) Update(ctx context.Context, party *ledger.Party) error {
	return saveExisting(ctx, r.db, models.PartyFromDomain(party))
}

var _ ledger.PartyRepository = (*GormPartyRepository)(nil)
