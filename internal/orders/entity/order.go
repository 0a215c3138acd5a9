package entity

import "time"

// Order customer/vendor sales order. Status moves only forward through the
// transition table in the service; role-stamped fields record who drove each
// step.
type Order struct {
	ID         string  `json:"id" gorm:"primaryKey;size:32"`
	OrderCode  string  `json:"order_code" gorm:"size:32;uniqueIndex;not null"`
	CustomerID string  `json:"customer_id" gorm:"size:32;not null;index"`
	Status     string  `json:"status" gorm:"size:20;not null;default:placed;index"`
	Total      float64 `json:"total" gorm:"type:decimal(15,2);default:0"` // derived, never authoritative
	VehicleID  *string `json:"vehicle_id" gorm:"size:32"`

	ConfirmedBy      *string `json:"confirmed_by" gorm:"size:32"`
	PaymentCheckedBy *string `json:"payment_checked_by" gorm:"size:32"`
	ProcessedBy      *string `json:"processed_by" gorm:"size:32"`
	ShippedBy        *string `json:"shipped_by" gorm:"size:32"`
	ReceivedBy       *string `json:"received_by" gorm:"size:32"`
	CancelledBy      *string `json:"cancelled_by" gorm:"size:32"`
	ReturnedBy       *string `json:"returned_by" gorm:"size:32"`

	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string {
	return "orders"
}

// Order statuses
const (
	OrderStatusPlaced         = "placed"
	OrderStatusConfirmed      = "confirmed"
	OrderStatusPaymentChecked = "payment_checked"
	OrderStatusProcessing     = "processing"
	OrderStatusShipped        = "shipped"
	OrderStatusReceived       = "received"
	OrderStatusCancelled      = "cancelled"
	OrderStatusReturned       = "returned"
)

// OrderItem one product line. OriginalQty is as placed, FinalQty as adjusted
// by staff before confirmation; both are retained.
type OrderItem struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	OrderID     string    `json:"order_id" gorm:"size:32;not null;index"`
	ProductID   string    `json:"product_id" gorm:"size:32;not null;index"`
	OriginalQty int       `json:"original_qty" gorm:"not null"`
	FinalQty    int       `json:"final_qty" gorm:"not null"`
	UnitPrice   float64   `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	Subtotal    float64   `json:"subtotal" gorm:"type:decimal(15,2);not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// OrderItemHistory append-only record of final_qty changes.
type OrderItemHistory struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	OrderID   string    `json:"order_id" gorm:"size:32;not null;index"`
	ItemID    string    `json:"item_id" gorm:"size:32;not null;index"`
	ProductID string    `json:"product_id" gorm:"size:32;not null"`
	OldQty    int       `json:"old_qty" gorm:"not null"`
	NewQty    int       `json:"new_qty" gorm:"not null"`
	ChangedBy string    `json:"changed_by" gorm:"size:32;not null"`
	Reason    string    `json:"reason" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

func (OrderItemHistory) TableName() string {
	return "order_item_histories"
}
