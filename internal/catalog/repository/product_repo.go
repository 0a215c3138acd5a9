package repository

import (
	"context"
	"errors"

	"github.com/haldiram/distribution/internal/catalog/entity"
	"github.com/haldiram/distribution/internal/errs"
	"gorm.io/gorm"
)

// ProductRepository master catalog lookups
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	var p entity.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &errs.NotFoundError{Resource: "product", ID: id}
		}
		return nil, err
	}
	return &p, nil
}

// FindActiveByIDs loads a batch of products keyed by id. Missing or inactive
// ids surface as NotFoundError so multi-line operations fail early.
func (r *ProductRepository) FindActiveByIDs(ctx context.Context, ids []string) (map[string]*entity.Product, error) {
	var products []entity.Product
	err := r.db.WithContext(ctx).
		Where("id IN ? AND active = true", ids).
		Find(&products).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*entity.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, &errs.NotFoundError{Resource: "product", ID: id}
		}
	}
	return byID, nil
}

func (r *ProductRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Product, int64, error) {
	var items []entity.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Product{})

	if search := filters["search"]; search != "" {
		query = query.Where("sku ILIKE ? OR name ILIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if active := filters["active"]; active != "" {
		query = query.Where("active = ?", active == "true")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("sku ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

func (r *ProductRepository) Create(ctx context.Context, p *entity.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProductRepository) Update(ctx context.Context, p *entity.Product) error {
	return r.db.WithContext(ctx).Save(p).Error
}
