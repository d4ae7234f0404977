// Package domain contains the user identity and row-level grant models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Role is the coarse account role.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// PermissionAny combined with RoleAdmin makes a user a superuser.
const PermissionAny = "any"

// User is an authentication identity with authorization attributes.
type User struct {
	ID          snowflake.ID                 `gorm:"primaryKey" json:"id"`
	Email       string                       `gorm:"uniqueIndex;not null" json:"email"`
	FullName    string                       `gorm:"not null" json:"full_name"`
	Role        Role                         `gorm:"type:text;not null;default:'user'" json:"role"`
	Permissions datatypes.JSONSlice[string]  `gorm:"not null;default:'[]'" json:"permissions"`
	Active      bool                         `gorm:"not null;default:true" json:"active"`
	Verified    bool                         `gorm:"not null;default:false" json:"verified"`
	Suspended   bool                         `gorm:"not null;default:false" json:"suspended"`
	CreatedAt   time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// IsSuperuser derives the superuser flag from role and permissions. It is
// computed on read and never stored, so role or permission edits can never
// drift from the derived value.
func IsSuperuser(role Role, permissions []string) bool {
	if role != RoleAdmin {
		return false
	}
	for _, p := range permissions {
		if p == PermissionAny {
			return true
		}
	}
	return false
}

// Superuser reports whether the user bypasses all row-level scoping.
func (u User) Superuser() bool {
	return IsSuperuser(u.Role, u.Permissions)
}

// MachineUser grants a user visibility into one machine.
type MachineUser struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;uniqueIndex:idx_machine_users_user_machine" json:"user_id"`
	MachineID snowflake.ID `gorm:"not null;uniqueIndex:idx_machine_users_user_machine" json:"machine_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (MachineUser) TableName() string { return "machine_users" }

// ProductUser grants a user visibility into one product.
type ProductUser struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;uniqueIndex:idx_product_users_user_product" json:"user_id"`
	ProductID snowflake.ID `gorm:"not null;uniqueIndex:idx_product_users_user_product" json:"product_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ProductUser) TableName() string { return "product_users" }
