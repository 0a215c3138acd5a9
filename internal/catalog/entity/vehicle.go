package entity

import "time"

// Vehicle delivery vehicle assignable to a confirmed order.
type Vehicle struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	Number     string    `json:"number" gorm:"size:20;uniqueIndex;not null"`
	Type       string    `json:"type" gorm:"size:50"`
	CapacityKg int       `json:"capacity_kg" gorm:"default:0"`
	Active     bool      `json:"active" gorm:"default:true"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}
