package entity

import "time"

// StockLevel one row per product: aggregate on-hand quantity.
// quantity >= 0 always; kept reconciled with batches by movement
// bookkeeping, never by recomputation.
type StockLevel struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	ProductID string    `json:"product_id" gorm:"size:32;uniqueIndex;not null"`
	Quantity  int       `json:"quantity" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StockLevel) TableName() string {
	return "stock_levels"
}

// StockBatch a discrete expiry-dated lot of a product. Deactivated when
// exhausted or retired, never deleted while movements reference it.
type StockBatch struct {
	ID         string     `json:"id" gorm:"primaryKey;size:32"`
	BatchNo    string     `json:"batch_no" gorm:"size:50;uniqueIndex;not null"`
	ProductID  string     `json:"product_id" gorm:"size:32;not null;index"`
	Quantity   int        `json:"quantity" gorm:"not null"`
	Unit       string     `json:"unit" gorm:"size:20;default:pcs"`
	ExpireDate *time.Time `json:"expire_date"`
	Active     bool       `json:"active" gorm:"default:true;index"`
	CreatedBy  string     `json:"created_by" gorm:"size:32"`
	Notes      string     `json:"notes" gorm:"type:text"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (StockBatch) TableName() string {
	return "stock_batches"
}

// StockMovement immutable signed quantity change. Append-only: a movement is
// undone by writing a REVERSE movement pointing back at it, never by
// mutation. The unique index on reversal_of permits exactly one reversal.
type StockMovement struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	ProductID  string    `json:"product_id" gorm:"size:32;not null;index"`
	BatchID    *string   `json:"batch_id" gorm:"size:32;index"`
	Quantity   int       `json:"quantity" gorm:"not null"` // signed delta
	Kind       string    `json:"kind" gorm:"size:10;not null;index"`
	Reference  string    `json:"reference" gorm:"size:100;index"` // order:<id>, PO#<id>, batch:<id>
	ReversalOf *string   `json:"reversal_of" gorm:"size:32;uniqueIndex"`
	ActorID    string    `json:"actor_id" gorm:"size:32;not null"`
	Notes      string    `json:"notes" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
}

func (StockMovement) TableName() string {
	return "stock_movements"
}

// Movement kinds
const (
	MovementIn      = "IN"
	MovementOut     = "OUT"
	MovementAdjust  = "ADJUST"
	MovementReverse = "REVERSE"
)
