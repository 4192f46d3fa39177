package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/erp/ledgersync/internal/domain/ledger"
	"github.com/erp/ledgersync/internal/infrastructure/persistence/models"
)

// GormTaxRepository implements ledger.TaxRepository using GORM
type GormTaxRepository struct {
	db *gorm.DB
}

// NewGormTaxRepository creates a new GormTaxRepository
func NewGormTaxRepository(db *gorm.DB) *GormTaxRepository {
	return &GormTaxRepository{db: db}
}

// Find returns matching taxes ordered by priority then sequence. Flags and
// direction are filtered in SQL; amount and name matching reuse
// TaxQuery.Matches so both stores agree on numeric equality.
func (r *GormTaxRepository) Find(ctx context.Context, query ledger.TaxQuery) ([]ledger.Tax, error) {
	tx := r.db.WithContext(ctx).Model(&models.TaxModel{})
	if query.ActiveOnly {
		tx = tx.Where("active = ?", true)
	}
	if query.InclusiveOnly {
		tx = tx.Where("price_include = ?", true)
	}
	if query.Direction != nil {
		tx = tx.Where("direction = ?", *query.Direction)
	}

	var rows []models.TaxModel
	if err := tx.Order("priority, sequence").Find(&rows).Error; err != nil {
		return nil, err
	}

	taxes := make([]ledger.Tax, 0, len(rows))
	for i := range rows {
		tax := rows[i].ToDomain()
		if query.Matches(tax) {
			taxes = append(taxes, *tax)
		}
	}
	ledger.SortTaxes(taxes)
	return taxes, nil
}

// FindByName finds a tax by exact name, active or not
func (r *GormTaxRepository) FindByName(ctx context.Context, name string) (*ledger.Tax, error) {
	var model models.TaxModel
	if err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Order("sequence").
		First(&model).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}

// Create persists a new tax with the next sequence number
func (r *GormTaxRepository) Create(ctx context.Context, tax *ledger.Tax) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		if err := tx.Model(&models.TaxModel{}).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}

		tax.Sequence = maxSeq + 1
		model := models.TaxFromDomain(tax)
		model.EnsureID()
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		tax.ID = model.ID
		tax.CreatedAt = model.CreatedAt
		tax.UpdatedAt = model.UpdatedAt
		return nil
	})
}

// Update saves every field of an existing tax
func (r *GormTaxRepository) Update(ctx context.Context, tax *ledger.Tax) error {
	return saveExisting(ctx, r.db, models.TaxFromDomain(tax))
}

var _ ledger.TaxRepository = (*GormTaxRepository)(nil)
