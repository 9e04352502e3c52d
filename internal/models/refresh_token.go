package models

import (
	"time"

	"github.com/uptrace/bun"
)

// RefreshToken is a persisted long-lived credential. Revocation is a
// flag flip, never a delete, so a revoked token stays visibly revoked
// until the expiry sweep removes it.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID    int64     `bun:"user_id,notnull" json:"user_id"`
	Token     string    `bun:"token,unique,notnull" json:"-"`
	ExpiresAt time.Time `bun:"expires_at,notnull" json:"expires_at"`
	IsRevoked bool      `bun:"is_revoked" json:"is_revoked"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}
