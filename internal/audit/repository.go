package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository append-only writer/reader for audit logs. Record takes the tx
// handle so entries always share the triggering mutation's transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Record appends an entry using the given db handle (usually a transaction).
func (r *Repository) Record(tx *gorm.DB, log *Log) error {
	if log.ID == "" {
		log.ID = uuid.New().String()[:32]
	}
	return tx.Create(log).Error
}

// FindByEntity lists entries for one entity, newest first.
func (r *Repository) FindByEntity(ctx context.Context, entityType, entityID string, page, pageSize int) ([]Log, int64, error) {
	var items []Log
	var total int64

	query := r.db.WithContext(ctx).Model(&Log{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID)

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

// FindByAction lists entries by action tag across entities (driver
// assignments are read back this way).
func (r *Repository) FindByAction(ctx context.Context, entityType, action string, page, pageSize int) ([]Log, int64, error) {
	var items []Log
	var total int64

	query := r.db.WithContext(ctx).Model(&Log{}).
		Where("entity_type = ? AND action = ?", entityType, action)

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
