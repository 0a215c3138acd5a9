package repository

import "gorm.io/gorm"

// Repositories purchasing repository set
type Repositories struct {
	PO *PORepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		PO: NewPORepository(db),
	}
}
