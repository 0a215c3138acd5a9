package entity

import "time"

// User actor record. Authentication lives outside this service; the core
// only needs identity and role to gate workflow transitions.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Username  string    `json:"username" gorm:"size:100;uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"size:100"`
	Email     string    `json:"email" gorm:"size:200"`
	Role      string    `json:"role" gorm:"size:20;not null;default:staff"`
	Active    bool      `json:"active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Roles
const (
	RoleMasterAdmin = "master_admin"
	RoleAdmin       = "admin"
	RoleAccountant  = "accountant"
	RoleVendor      = "vendor"
	RoleStaff       = "staff"
	RoleDriver      = "driver"
	RoleSecurity    = "security"
)

// IsElevated reports whether a role may act on resources it does not own.
func IsElevated(role string) bool {
	switch role {
	case RoleMasterAdmin, RoleAdmin, RoleStaff:
		return true
	}
	return false
}
