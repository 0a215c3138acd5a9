package repository

import (
	"context"
	"errors"
	"time"

	"github.com/haldiram/distribution/internal/errs"
	"github.com/haldiram/distribution/internal/inventory/entity"
	"gorm.io/gorm"
)

type MovementRepository struct {
	db *gorm.DB
}

func NewMovementRepository(db *gorm.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

func (r *MovementRepository) FindByID(ctx context.Context, id string) (*entity.StockMovement, error) {
	var m entity.StockMovement
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &errs.NotFoundError{Resource: "movement", ID: id}
		}
		return nil, err
	}
	return &m, nil
}

func (r *MovementRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.StockMovement, int64, error) {
	var items []entity.StockMovement
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.StockMovement{})

	if productID := filters["product_id"]; productID != "" {
		query = query.Where("product_id = ?", productID)
	}
	if kind := filters["kind"]; kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if ref := filters["reference"]; ref != "" {
		query = query.Where("reference = ?", ref)
	}
	if from := filters["from"]; from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			query = query.Where("created_at >= ?", t)
		} else {
			return nil, 0, &errs.ValidationError{Field: "from", Reason: "expected YYYY-MM-DD"}
		}
	}
	if to := filters["to"]; to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			query = query.Where("created_at < ?", t.AddDate(0, 0, 1))
		} else {
			return nil, 0, &errs.ValidationError{Field: "to", Reason: "expected YYYY-MM-DD"}
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByReference lists every movement written under one correlation id,
// oldest first (an order's allocation trail).
func (r *MovementRepository) FindByReference(ctx context.Context, reference string) ([]entity.StockMovement, error) {
	var items []entity.StockMovement
	err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}
