package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket is a single admission credential for one attendee. The ID is
// externally visible and printed as a barcode; it never changes after
// issuance. The used flag is monotonic: once a ticket has been scanned
// successfully it stays used forever, with used_at and scanned_by set
// exactly once by the winning scan.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID            string    `bun:"id,pk" json:"id"`
	OrderID       string    `bun:"order_id,notnull" json:"order_id"`
	Name          string    `bun:"name,notnull" json:"name"`
	Phone         string    `bun:"phone,notnull" json:"phone"`
	Category      string    `bun:"category,notnull" json:"category"`
	Price         int64     `bun:"price,notnull" json:"price"`
	QRPayload     string    `bun:"qr_payload" json:"qr_payload,omitempty"`
	DocumentRef   string    `bun:"document_ref" json:"document_ref,omitempty"`
	ClientName    string    `bun:"client_name,notnull" json:"client_name"`
	ClientPhone   string    `bun:"client_phone,notnull" json:"client_phone"`
	PaymentMethod string    `bun:"payment_method" json:"payment_method,omitempty"`
	Used          bool      `bun:"used" json:"used"`
	UsedAt        time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
	ScannedBy     int64     `bun:"scanned_by,nullzero" json:"scanned_by,omitempty"`
	Sent          bool      `bun:"sent" json:"sent"`
	SentAt        time.Time `bun:"sent_at,nullzero" json:"sent_at,omitempty"`
	CreatedBy     int64     `bun:"created_by,notnull" json:"created_by"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`

	// Filled by joins, never written.
	VendorName string `bun:"vendor_name,scanonly" json:"vendor_name,omitempty"`
}
