package repository

import (
	"context"
	"errors"

	"github.com/haldiram/distribution/internal/inventory/entity"
	"gorm.io/gorm"
)

// LevelRepository aggregate stock level reads. Writes go through the ledger
// service transactions so the movement log never drifts from the level.
type LevelRepository struct {
	db *gorm.DB
}

func NewLevelRepository(db *gorm.DB) *LevelRepository {
	return &LevelRepository{db: db}
}

// FindByProduct returns the level row, or nil when no stock has ever been
// received for the product.
func (r *LevelRepository) FindByProduct(ctx context.Context, productID string) (*entity.StockLevel, error) {
	var level entity.StockLevel
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&level).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &level, nil
}

func (r *LevelRepository) FindAll(ctx context.Context, page, pageSize int) ([]entity.StockLevel, int64, error) {
	var items []entity.StockLevel
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.StockLevel{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("product_id ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}
