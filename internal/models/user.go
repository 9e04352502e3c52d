package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Staff roles. Every user carries exactly one.
const (
	RoleAdmin      = "admin"
	RoleVendor     = "vendor"
	RoleController = "controller"
)

// ValidRole reports whether role is one of the known staff roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleVendor, RoleController:
		return true
	}
	return false
}

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Username  string    `bun:"username,unique,notnull" json:"username"`
	Password  string    `bun:"password,notnull" json:"-"`
	Name      string    `bun:"name,notnull" json:"name"`
	Phone     string    `bun:"phone" json:"phone,omitempty"`
	Role      string    `bun:"role,notnull" json:"role"`
	IsActive  bool      `bun:"is_active" json:"is_active"`
	LastLogin time.Time `bun:"last_login,nullzero" json:"last_login,omitempty"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
