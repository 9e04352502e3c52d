// Package audit persists append-only records of sensitive operations.
// Writes are best-effort: a failed audit insert is logged and swallowed,
// never allowed to fail the primary operation.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/uptrace/bun"

	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
)

// Audit actions.
const (
	ActionLogin          = "LOGIN"
	ActionLogout         = "LOGOUT"
	ActionTicketsCreate  = "TICKETS_CREATE"
	ActionTicketScan     = "TICKET_SCAN"
	ActionTicketSent     = "TICKET_SENT"
	ActionTicketDelete   = "TICKET_DELETE"
	ActionUserCreate     = "USER_CREATE"
	ActionUserUpdate     = "USER_UPDATE"
	ActionUserDeactivate = "USER_DEACTIVATE"
	ActionUserPurge      = "USER_PURGE"
	ActionPasswordChange = "PASSWORD_CHANGE"
	ActionRoleChange     = "ROLE_CHANGE"
)

type Entry struct {
	UserID     int64
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]interface{}
}

type Recorder struct {
	db  *bun.DB
	log *logger.Logger
}

func NewRecorder(db *bun.DB, log *logger.Logger) *Recorder {
	return &Recorder{db: db, log: log}
}

// Record writes one audit row. Safe on a nil receiver so tests and
// partially wired services can skip auditing.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil || r.db == nil {
		return
	}

	details := "{}"
	if e.Details != nil {
		if b, err := json.Marshal(e.Details); err == nil {
			details = string(b)
		}
	}

	row := &models.AuditLog{
		UserID:     e.UserID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Details:    details,
	}

	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		r.log.Error("AUDIT", fmt.Sprintf("failed to record %s for entity %s: %v", e.Action, e.EntityID, err))
	}
}
