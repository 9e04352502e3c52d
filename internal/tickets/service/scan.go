package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/models"
	"gatekeeper/internal/policy"
)

// ScanOutcome is the result of an entry-validation attempt. Already-used
// and unknown tickets are expected occurrences at a gate, so they are
// outcomes rather than errors; only storage failures surface as errors.
type ScanOutcome struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Details string         `json:"details,omitempty"`
	Ticket  *models.Ticket `json:"ticket,omitempty"`
}

// Scan redeems a ticket for entry. The conditional update in MarkUsed
// is the only serialization point: however many gate devices race on
// the same id, exactly one observes rows-affected == 1. Retrying after
// a timeout is safe; the predicate makes the write idempotent, so a
// retry either wins once or reports already-used.
func (s *TicketService) Scan(ctx context.Context, ticketID string, scanner *models.User) (*ScanOutcome, error) {
	if err := policy.Allow(scanner, policy.TicketsScan); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	won, err := s.DB.MarkUsed(ctx, ticketID, scanner.ID, now)
	if err != nil {
		return nil, fmt.Errorf("scan ticket %s: %w", ticketID, err)
	}

	if won {
		ticket, err := s.DB.GetByID(ctx, ticketID)
		if err != nil {
			return nil, fmt.Errorf("reload ticket %s after scan: %w", ticketID, err)
		}

		s.recordScanLog(ctx, ticketID, scanner.ID, now, models.ScanResultSuccess, "")
		s.Audit.Record(ctx, audit.Entry{
			UserID:     scanner.ID,
			Action:     audit.ActionTicketScan,
			EntityType: "ticket",
			EntityID:   ticketID,
			Details: map[string]interface{}{
				"attendee_name": ticket.Name,
				"category":      ticket.Category,
			},
		})
		s.Log.LogScan(ticketID, scanner.ID, models.ScanResultSuccess)
		s.publishScanned(ctx, *ticket)

		return &ScanOutcome{
			Success: true,
			Message: "ticket valid",
			Details: "entry authorized",
			Ticket:  ticket,
		}, nil
	}

	// The predicate did not match: either the ticket does not exist or
	// someone else already won the transition.
	ticket, err := s.DB.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.recordScanLog(ctx, ticketID, scanner.ID, now, models.ScanResultFailed, models.ScanFailureNotFound)
			s.Log.LogScan(ticketID, scanner.ID, models.ScanFailureNotFound)
			return &ScanOutcome{
				Success: false,
				Message: "ticket not found",
				Details: "this ticket does not exist in the system",
			}, nil
		}
		return nil, fmt.Errorf("fetch ticket %s after failed scan: %w", ticketID, err)
	}

	if ticket.Used {
		s.recordScanLog(ctx, ticketID, scanner.ID, now, models.ScanResultFailed, models.ScanFailureAlreadyUsed)
		s.Log.LogScan(ticketID, scanner.ID, models.ScanFailureAlreadyUsed)
		return &ScanOutcome{
			Success: false,
			Message: "ticket already used",
			Details: fmt.Sprintf("first scanned at %s by user %d", ticket.UsedAt.Format(time.RFC3339), ticket.ScannedBy),
			Ticket:  ticket,
		}, nil
	}

	// used=false but the update missed: the row changed between the two
	// statements in some unexpected way. Treat as infrastructure fault.
	return nil, fmt.Errorf("scan ticket %s: conditional update did not apply", ticketID)
}

// recordScanLog appends the attempt to the audit trail. Best-effort:
// the scan outcome stands even if the log row cannot be written.
func (s *TicketService) recordScanLog(ctx context.Context, ticketID string, scannerID int64, at time.Time, result, reason string) {
	entry := &models.ScanLog{
		TicketID:      ticketID,
		ScannedBy:     scannerID,
		ScannedAt:     at,
		Result:        result,
		FailureReason: reason,
	}
	if err := s.DB.InsertScanLog(ctx, entry); err != nil {
		s.Log.Error("SCAN", fmt.Sprintf("failed to record scan log for %s: %v", ticketID, err))
	}
}

func (s *TicketService) publishScanned(ctx context.Context, ticket models.Ticket) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishTicketScanned(ctx, ticket); err != nil {
		s.Log.Error("EVENTS", fmt.Sprintf("failed to publish scan of %s: %v", ticket.ID, err))
	}
}
