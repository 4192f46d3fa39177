package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/erp/ledgersync/internal/domain/ledger"
	"github.com/erp/ledgersync/internal/infrastructure/persistence/models"
)

// GormChartRepository implements ledger.ChartRepository using GORM
type GormChartRepository struct {
	db *gorm.DB
}

// NewGormChartRepository creates a new GormChartRepository
func NewGormChartRepository(db *gorm.DB) *GormChartRepository {
	return &GormChartRepository{db: db}
}

// FindTaxGroup returns the oldest tax group whose name contains the fragment
func (r *GormChartRepository) FindTaxGroup(ctx context.Context, nameContains string) (*ledger.TaxGroup, error) {
	model, err := findFirst[models.TaxGroupModel](ctx, r.db, "name LIKE ? ESCAPE '\\'", "%"+escapeLike(nameContains)+"%")
	if err != nil {
		return nil, err
	}
	return &ledger.TaxGroup{ID: model.ID, Name: model.Name}, nil
}

// CreateTaxGroup persists a new tax group
func (r *GormChartRepository) CreateTaxGroup(ctx context.Context, group *ledger.TaxGroup) error {
	model := &models.TaxGroupModel{BaseModel: models.BaseModel{ID: group.ID}, Name: group.Name}
	model.EnsureID()
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	group.ID = model.ID
	return nil
}

// FindAccountByCodePrefix returns the account with the lowest code starting
// with prefix
func (r *GormChartRepository) FindAccountByCodePrefix(ctx context.Context, prefix string) (*ledger.Account, error) {
	var model models.AccountModel
	if err := r.db.WithContext(ctx).
		Where("code LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		Order("code").
		First(&model).Error; err != nil {
		return nil, translate(err)
	}
	return &ledger.Account{ID: model.ID, Code: model.Code, Name: model.Name}, nil
}

// CreateAccount persists a new account
func (r *GormChartRepository) CreateAccount(ctx context.Context, account *ledger.Account) error {
	model := &models.AccountModel{
		BaseModel: models.BaseModel{ID: account.ID},
		Code:      account.Code,
		Name:      account.Name,
	}
	model.EnsureID()
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	account.ID = model.ID
	return nil
}

var _ ledger.ChartRepository = (*GormChartRepository)(nil)
