package entity

import "time"

// PurchaseOrder vendor-submitted order. Line prices always come from the
// product master; whatever the vendor submits is discarded.
type PurchaseOrder struct {
	ID       string  `json:"id" gorm:"primaryKey;size:32"`
	POCode   string  `json:"po_code" gorm:"size:32;uniqueIndex;not null"`
	VendorID string  `json:"vendor_id" gorm:"size:32;not null;index"`
	Status   string  `json:"status" gorm:"size:20;not null;default:placed;index"`
	Total    float64 `json:"total" gorm:"type:decimal(15,2);default:0"` // derived from items at master price

	ExpectedDate *time.Time `json:"expected_date"`

	AcceptedBy        *string `json:"accepted_by" gorm:"size:32"`
	ReceivedBy        *string `json:"received_by" gorm:"size:32"`
	DispatchedBy      *string `json:"dispatched_by" gorm:"size:32"`
	CancelledBy       *string `json:"cancelled_by" gorm:"size:32"`
	PaymentVerifiedBy *string `json:"payment_verified_by" gorm:"size:32"`

	// Extended payment/shipping path
	PaymentRef *string `json:"payment_ref" gorm:"size:64"`
	BoxCount   *int    `json:"box_count"`
	DriverID   *string `json:"driver_id" gorm:"size:32"`
	TrackingID *string `json:"tracking_id" gorm:"size:64"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []PurchaseItem `json:"items,omitempty" gorm:"foreignKey:POID"`
}

func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

// PO statuses. The payment path after dispatch is optional and only entered
// when gateway collection is enabled.
const (
	POStatusPlaced          = "placed"
	POStatusAccepted        = "accepted"
	POStatusReceived        = "received"
	POStatusDispatched      = "dispatched"
	POStatusPaymentPending  = "payment_pending"
	POStatusPaid            = "paid"
	POStatusPaymentFailed   = "payment_failed"
	POStatusPaymentVerified = "payment_verified"
	POStatusPacked          = "packed"
	POStatusDriverAssigned  = "driver_assigned"
	POStatusShipped         = "shipped"
	POStatusCancelled       = "cancelled"
)

// PurchaseItem one product line at master catalog price.
type PurchaseItem struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	POID      string    `json:"po_id" gorm:"size:32;not null;index"`
	ProductID string    `json:"product_id" gorm:"size:32;not null;index"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	UnitPrice float64   `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	Subtotal  float64   `json:"subtotal" gorm:"type:decimal(15,2);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PurchaseItem) TableName() string {
	return "purchase_items"
}

// PurchaseItemHistory append-only record of quantity corrections.
type PurchaseItemHistory struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	POID      string    `json:"po_id" gorm:"size:32;not null;index"`
	ItemID    string    `json:"item_id" gorm:"size:32;not null;index"`
	ProductID string    `json:"product_id" gorm:"size:32;not null"`
	OldQty    int       `json:"old_qty" gorm:"not null"`
	NewQty    int       `json:"new_qty" gorm:"not null"`
	ChangedBy string    `json:"changed_by" gorm:"size:32;not null"`
	Reason    string    `json:"reason" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

func (PurchaseItemHistory) TableName() string {
	return "purchase_item_histories"
}
