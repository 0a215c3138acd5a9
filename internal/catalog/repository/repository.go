package repository

import "gorm.io/gorm"

// Repositories catalog repository set
type Repositories struct {
	Product *ProductRepository
	User    *UserRepository
	Vehicle *VehicleRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Product: NewProductRepository(db),
		User:    NewUserRepository(db),
		Vehicle: NewVehicleRepository(db),
	}
}
