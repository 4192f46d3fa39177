package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/erp/ledgersync/internal/domain/ledger"
	"github.com/erp/ledgersync/internal/infrastructure/persistence/models"
)

// GormProductRepository implements ledger.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) find(ctx context.Context, query string, args ...any) (*ledger.Product, error) {
	model, err := findFirst[models.ProductModel](ctx, r.db, query, args...)
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByExternalID finds the product linked to an upstream product
func (r *GormProductRepository) FindByExternalID(ctx context.Context, externalID string) (*ledger.Product, error) {
	return r.find(ctx, "external_id = ?", externalID)
}

// FindByNaturalKey finds a product by its code
func (r *GormProductRepository) FindByNaturalKey(ctx context.Context, code string) (*ledger.Product, error) {
	return r.find(ctx, "code = ?", code)
}

// FindByName finds the oldest product with the exact name
func (r *GormProductRepository) FindByName(ctx context.Context, name string) (*ledger.Product, error) {
	return r.find(ctx, "name = ?", name)
}

// LinkExternalID stores the upstream id on the product
func (r *GormProductRepository) LinkExternalID(ctx context.Context, product *ledger.Product, externalID string) error {
	product.ExternalID = externalID
	return r.Update(ctx, product)
}

// Create persists a new product
func (r *GormProductRepository) Create(ctx context.Context, product *ledger.Product) error {
	model := models.ProductFromDomain(product)
	model.EnsureID()
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	product.ID = model.ID
	product.CreatedAt = model.CreatedAt
	product.UpdatedAt = model.UpdatedAt
	return nil
}

// Update saves every field of an existing product
func (r *GormProductRepository) Update(ctx context.Context, product *ledger.Product) error {
	return saveExisting(ctx, r.db, models.ProductFromDomain(product))
}

var _ ledger.ProductRepository = (*GormProductRepository)(nil)
