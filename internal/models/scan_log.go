package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Scan attempt results.
const (
	ScanResultSuccess = "success"
	ScanResultFailed  = "failed"
)

// Failure reasons recorded on unsuccessful attempts.
const (
	ScanFailureNotFound    = "not_found"
	ScanFailureAlreadyUsed = "already_used"
)

// ScanLog is one row per scan attempt, successful or not. Rows are
// append-only. TicketID is kept as plain text without FK enforcement so
// attempts against fabricated barcodes are still recorded for forensics.
type ScanLog struct {
	bun.BaseModel `bun:"table:scan_logs"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	TicketID      string    `bun:"ticket_id,notnull" json:"ticket_id"`
	ScannedBy     int64     `bun:"scanned_by,notnull" json:"scanned_by"`
	ScannedAt     time.Time `bun:"scanned_at,nullzero,notnull,default:current_timestamp" json:"scanned_at"`
	Result        string    `bun:"scan_result,notnull" json:"result"`
	FailureReason string    `bun:"failure_reason" json:"failure_reason,omitempty"`
}
