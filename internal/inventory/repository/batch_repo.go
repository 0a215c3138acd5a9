package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haldiram/distribution/internal/errs"
	"github.com/haldiram/distribution/internal/inventory/entity"
	"gorm.io/gorm"
)

type BatchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) FindByID(ctx context.Context, id string) (*entity.StockBatch, error) {
	var batch entity.StockBatch
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &errs.NotFoundError{Resource: "batch", ID: id}
		}
		return nil, err
	}
	return &batch, nil
}

// FindActiveByProduct lists non-empty active lots in consumption order:
// soonest expiry first, undated lots last, ties broken by arrival.
func (r *BatchRepository) FindActiveByProduct(ctx context.Context, productID string) ([]entity.StockBatch, error) {
	var batches []entity.StockBatch
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND active = true AND quantity > 0", productID).
		Order("expire_date ASC NULLS LAST, created_at ASC").
		Find(&batches).Error
	return batches, err
}

func (r *BatchRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.StockBatch, int64, error) {
	var items []entity.StockBatch
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.StockBatch{})

	if productID := filters["product_id"]; productID != "" {
		query = query.Where("product_id = ?", productID)
	}
	if active := filters["active"]; active != "" {
		query = query.Where("active = ?", active == "true")
	}
	if search := filters["search"]; search != "" {
		query = query.Where("batch_no ILIKE ?", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("expire_date ASC NULLS LAST, created_at ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindExpiringSoon lists active lots expiring within the window.
func (r *BatchRepository) FindExpiringSoon(ctx context.Context, days int) ([]entity.StockBatch, error) {
	cutoff := time.Now().AddDate(0, 0, days)
	var batches []entity.StockBatch
	err := r.db.WithContext(ctx).
		Where("active = true AND quantity > 0 AND expire_date IS NOT NULL AND expire_date <= ?", cutoff).
		Order("expire_date ASC").
		Find(&batches).Error
	return batches, err
}

// GenerateBatchNo BAT-{year}-{4 digits}
func (r *BatchRepository) GenerateBatchNo(ctx context.Context) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("BAT-%s-", year)

	var maxNo string
	err := r.db.WithContext(ctx).
		Model(&entity.StockBatch{}).
		Select("COALESCE(MAX(batch_no), '')").
		Where("batch_no LIKE ?", prefix+"%").
		Scan(&maxNo).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxNo != "" {
		fmt.Sscanf(maxNo, "BAT-"+year+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("BAT-%s-%04d", year, seq), nil
}
