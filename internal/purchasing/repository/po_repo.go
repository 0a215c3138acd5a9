package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haldiram/distribution/internal/errs"
	"github.com/haldiram/distribution/internal/purchasing/entity"
	"gorm.io/gorm"
)

type PORepository struct {
	db *gorm.DB
}

func NewPORepository(db *gorm.DB) *PORepository {
	return &PORepository{db: db}
}

func (r *PORepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseOrder, int64, error) {
	var items []entity.PurchaseOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{})

	if vendorID := filters["vendor_id"]; vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("po_code ILIKE ?", "%"+search+"%")
	}
	if from := filters["from"]; from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return nil, 0, &errs.ValidationError{Field: "from", Reason: "expected YYYY-MM-DD"}
		}
		query = query.Where("created_at >= ?", t)
	}
	if to := filters["to"]; to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return nil, 0, &errs.ValidationError{Field: "to", Reason: "expected YYYY-MM-DD"}
		}
		query = query.Where("created_at < ?", t.AddDate(0, 0, 1))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

func (r *PORepository) FindByID(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	var po entity.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &errs.NotFoundError{Resource: "purchase order", ID: id}
		}
		return nil, err
	}
	return &po, nil
}

func (r *PORepository) Create(ctx context.Context, po *entity.PurchaseOrder) error {
	return r.db.WithContext(ctx).Create(po).Error
}

func (r *PORepository) FindItemHistory(ctx context.Context, poID string) ([]entity.PurchaseItemHistory, error) {
	var history []entity.PurchaseItemHistory
	err := r.db.WithContext(ctx).
		Where("po_id = ?", poID).
		Order("created_at ASC").
		Find(&history).Error
	return history, err
}

// GenerateCode PO-{year}-{4 digits}
func (r *PORepository) GenerateCode(ctx context.Context) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("PO-%s-", year)

	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.PurchaseOrder{}).
		Select("COALESCE(MAX(po_code), '')").
		Where("po_code LIKE ?", prefix+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, "PO-"+year+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("PO-%s-%04d", year, seq), nil
}
