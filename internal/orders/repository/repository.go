package repository

import "gorm.io/gorm"

// Repositories orders repository set
type Repositories struct {
	Order *OrderRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Order: NewOrderRepository(db),
	}
}
