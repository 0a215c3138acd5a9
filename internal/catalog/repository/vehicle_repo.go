package repository

import (
	"context"
	"errors"

	"github.com/haldiram/distribution/internal/catalog/entity"
	"github.com/haldiram/distribution/internal/errs"
	"gorm.io/gorm"
)

type VehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

func (r *VehicleRepository) FindByID(ctx context.Context, id string) (*entity.Vehicle, error) {
	var v entity.Vehicle
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &errs.NotFoundError{Resource: "vehicle", ID: id}
		}
		return nil, err
	}
	return &v, nil
}

func (r *VehicleRepository) FindActive(ctx context.Context) ([]entity.Vehicle, error) {
	var vehicles []entity.Vehicle
	err := r.db.WithContext(ctx).
		Where("active = true").
		Order("number ASC").
		Find(&vehicles).Error
	return vehicles, err
}

func (r *VehicleRepository) Create(ctx context.Context, v *entity.Vehicle) error {
	return r.db.WithContext(ctx).Create(v).Error
}
