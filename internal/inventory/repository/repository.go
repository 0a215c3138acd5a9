package repository

import "gorm.io/gorm"

// Repositories inventory repository set
type Repositories struct {
	Level    *LevelRepository
	Batch    *BatchRepository
	Movement *MovementRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Level:    NewLevelRepository(db),
		Batch:    NewBatchRepository(db),
		Movement: NewMovementRepository(db),
	}
}
