package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AuditLog records sensitive operations. Append-only; Details holds a
// JSON document describing the operation.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID     int64     `bun:"user_id,nullzero" json:"user_id,omitempty"`
	Action     string    `bun:"action,notnull" json:"action"`
	EntityType string    `bun:"entity_type" json:"entity_type,omitempty"`
	EntityID   string    `bun:"entity_id" json:"entity_id,omitempty"`
	Details    string    `bun:"details" json:"details,omitempty"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}
