package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONB postgres jsonb column
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan JSONB: %v", value)
	}
	return json.Unmarshal(bytes, j)
}

// Log append-only audit record. Never updated or deleted; written in the
// same transaction as the mutation it records.
type Log struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	EntityType string `json:"entity_type" gorm:"size:50;not null;index:idx_audit_entity"` // order/purchase_order/stock/batch
	EntityID   string `json:"entity_id" gorm:"size:32;not null;index:idx_audit_entity"`

	Action     string `json:"action" gorm:"size:50;not null"`
	FromStatus string `json:"from_status" gorm:"size:30"`
	ToStatus   string `json:"to_status" gorm:"size:30"`

	Metadata JSONB `json:"metadata" gorm:"type:jsonb"`

	ActorID   string    `json:"actor_id" gorm:"size:32;not null;index"`
	ActorRole string    `json:"actor_role" gorm:"size:20"`
	CreatedAt time.Time `json:"created_at"`
}

func (Log) TableName() string {
	return "audit_logs"
}
