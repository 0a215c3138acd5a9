package entity

import "time"

// Product master catalog record. Unit price and GST rate here are
// authoritative; prices submitted by vendors are never trusted.
type Product struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	SKU         string    `json:"sku" gorm:"size:50;uniqueIndex;not null"`
	Name        string    `json:"name" gorm:"size:200;not null"`
	WeightGrams int       `json:"weight_grams" gorm:"default:0"`
	MinQuantity int       `json:"min_quantity" gorm:"default:0"` // reorder threshold
	MaxQuantity int       `json:"max_quantity" gorm:"default:0"`
	UnitPrice   float64   `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	GSTRate     float64   `json:"gst_rate" gorm:"type:decimal(5,2);default:0"` // percent
	Active      bool      `json:"active" gorm:"default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}
