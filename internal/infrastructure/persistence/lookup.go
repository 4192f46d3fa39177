package persistence

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/ledgersync/internal/domain/ledger"
)

// findFirst loads the oldest row matching the condition. Rows are ordered by
// creation time so ties resolve the same way as the in-memory store.
func findFirst[M any](ctx context.Context, db *gorm.DB, query string, args ...any) (*M, error) {
	var model M
	err := db.WithContext(ctx).
		Where(query, args...).
		Order("created_at").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &model, nil
}

// translate maps gorm.ErrRecordNotFound to ledger.ErrNotFound
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.ErrNotFound
	}
	return err
}

// saveExisting updates every column of an existing row and reports
// ledger.ErrNotFound when no row has the model's primary key
func saveExisting(ctx context.Context, db *gorm.DB, model any) error {
	result := db.WithContext(ctx).Model(model).Select("*").Omit("created_at", clause.Associations).Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// escapeLike escapes LIKE wildcards; queries pair it with ESCAPE '\'
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
