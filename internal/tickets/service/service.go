package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/config"
	"gatekeeper/internal/errs"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
	"gatekeeper/internal/policy"
	"gatekeeper/internal/tickets/db"
)

// TicketDBLayer is the durable ticket store. Implementations must make
// MarkUsed a single atomic conditional write; the service never does
// read-then-write for the used transition.
type TicketDBLayer interface {
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
	MarkUsed(ctx context.Context, id string, scannerID int64, now time.Time) (bool, error)
	MarkSent(ctx context.Context, id string, now time.Time) (bool, error)
	DeleteUnused(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, opts db.ListOptions) ([]models.Ticket, int, error)
	ListByOrder(ctx context.Context, orderID string) ([]models.Ticket, error)
	InsertScanLog(ctx context.Context, entry *models.ScanLog) error
}

// EventPublisher streams scan notifications. Optional; publish failures
// are logged only.
type EventPublisher interface {
	PublishTicketScanned(ctx context.Context, ticket models.Ticket) error
}

type TicketService struct {
	DB     TicketDBLayer
	Audit  *audit.Recorder
	Events EventPublisher
	Log    *logger.Logger
	Event  config.EventConfig
}

func NewTicketService(dbLayer TicketDBLayer, rec *audit.Recorder, events EventPublisher, log *logger.Logger, event config.EventConfig) *TicketService {
	return &TicketService{DB: dbLayer, Audit: rec, Events: events, Log: log, Event: event}
}

// Get returns one ticket, ownership-checked: vendors only see their own
// tickets, admins see everything.
func (s *TicketService) Get(ctx context.Context, id string, caller *models.User) (*models.Ticket, error) {
	ticket, err := s.DB.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("ticket")
		}
		return nil, fmt.Errorf("fetch ticket %s: %w", id, err)
	}
	if err := policy.AllowOwn(caller, policy.TicketsReadAll, policy.TicketsReadOwn, ticket.CreatedBy); err != nil {
		return nil, err
	}
	return ticket, nil
}

// List returns tickets with filters and pagination. Non-admin callers
// are forcibly scoped to their own tickets; the scoping is enforced
// here, never left to the caller-provided filter.
func (s *TicketService) List(ctx context.Context, opts db.ListOptions, caller *models.User) ([]models.Ticket, int, error) {
	perms := policy.PermissionsFor(caller.Role)
	switch {
	case perms.Has(policy.TicketsReadAll):
		// admin keeps whatever CreatedBy filter was asked for
	case perms.Has(policy.TicketsReadOwn):
		opts.CreatedBy = caller.ID
	default:
		return nil, 0, errs.Forbidden("listing tickets is not allowed")
	}
	return s.DB.List(ctx, opts)
}

// ByOrder returns all tickets of one order, ownership-checked against
// the order's issuer.
func (s *TicketService) ByOrder(ctx context.Context, orderID string, caller *models.User) ([]models.Ticket, error) {
	tickets, err := s.DB.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("fetch tickets for order %s: %w", orderID, err)
	}
	if len(tickets) == 0 {
		return nil, errs.NotFound("order")
	}
	if err := policy.AllowOwn(caller, policy.OrdersReadAll, policy.OrdersReadOwn, tickets[0].CreatedBy); err != nil {
		return nil, err
	}
	return tickets, nil
}

// MarkSent records delivery of the ticket to the attendee. Idempotent:
// the first call sets sent_at, repeat calls return the ticket unchanged.
func (s *TicketService) MarkSent(ctx context.Context, id string, caller *models.User) (*models.Ticket, error) {
	ticket, err := s.Get(ctx, id, caller)
	if err != nil {
		return nil, err
	}

	first, err := s.DB.MarkSent(ctx, id, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("mark ticket %s sent: %w", id, err)
	}
	if !first {
		return ticket, nil
	}

	s.Audit.Record(ctx, audit.Entry{
		UserID:     caller.ID,
		Action:     audit.ActionTicketSent,
		EntityType: "ticket",
		EntityID:   id,
		Details:    map[string]interface{}{"phone": ticket.Phone},
	})

	updated, err := s.DB.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload ticket %s: %w", id, err)
	}
	return updated, nil
}

// BatchSentResult reports per-ticket outcomes of a bulk mark-sent.
type BatchSentResult struct {
	Success []string       `json:"success"`
	Failed  []BatchFailure `json:"failed"`
}

type BatchFailure struct {
	TicketID string `json:"ticket_id"`
	Error    string `json:"error"`
}

func (s *TicketService) MarkSentBatch(ctx context.Context, ids []string, caller *models.User) (*BatchSentResult, error) {
	result := &BatchSentResult{Success: []string{}, Failed: []BatchFailure{}}
	for _, id := range ids {
		if _, err := s.MarkSent(ctx, id, caller); err != nil {
			result.Failed = append(result.Failed, BatchFailure{TicketID: id, Error: err.Error()})
			continue
		}
		result.Success = append(result.Success, id)
	}
	return result, nil
}

// Delete removes a ticket that has never been scanned. Deleting a used
// ticket is a business-rule conflict, not a silent no-op.
func (s *TicketService) Delete(ctx context.Context, id string, caller *models.User) error {
	if err := policy.Allow(caller, policy.TicketsDelete); err != nil {
		return err
	}

	ticket, err := s.DB.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.NotFound("ticket")
		}
		return fmt.Errorf("fetch ticket %s: %w", id, err)
	}
	if ticket.Used {
		return errs.Conflict("a used ticket cannot be deleted")
	}

	deleted, err := s.DB.DeleteUnused(ctx, id)
	if err != nil {
		return fmt.Errorf("delete ticket %s: %w", id, err)
	}
	if !deleted {
		// Lost a race with a concurrent scan; the ticket is used now.
		return errs.Conflict("a used ticket cannot be deleted")
	}

	s.Audit.Record(ctx, audit.Entry{
		UserID:     caller.ID,
		Action:     audit.ActionTicketDelete,
		EntityType: "ticket",
		EntityID:   id,
		Details:    map[string]interface{}{"attendee_name": ticket.Name},
	})
	return nil
}

// DeliveryMessage builds the text sent alongside the ticket artifact.
func (s *TicketService) DeliveryMessage(ctx context.Context, id string, caller *models.User) (string, error) {
	ticket, err := s.Get(ctx, id, caller)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"TICKET %s\n\nName: %s\nCategory: %s\nPrice: %d %s\nDate: %s - %s\nVenue: %s\n\nID: %s\n\nPresent this ticket at the entrance.\nThis ticket is personal and non-transferable.",
		s.Event.Name, ticket.Name, ticket.Category, ticket.Price, s.Event.Currency,
		s.Event.Date, s.Event.Time, s.Event.Venue, ticket.ID,
	), nil
}
