// Package orders turns a batch request into a set of persisted tickets
// sharing one order identifier. Validation rejects the whole batch with
// every violation listed; persistence is one transaction; artifact
// rendering happens after commit and never rolls tickets back.
package orders

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/config"
	"gatekeeper/internal/errs"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
	"gatekeeper/internal/policy"
	"gatekeeper/internal/render"
	"gatekeeper/internal/utils"
)

const (
	minAttendees    = 1
	maxAttendees    = 50
	minAttendeeName = 2
)

// One generic international pattern for every phone field.
var phoneRE = regexp.MustCompile(`^\+?[0-9][0-9 .-]{6,19}$`)

// TicketStore is the slice of the ticket store the issuance engine
// needs.
type TicketStore interface {
	CreateBatch(ctx context.Context, tickets []models.Ticket) error
	UpdateArtifact(ctx context.Context, id, qrPayload, documentRef string) error
	ListMissingArtifacts(ctx context.Context, limit int) ([]models.Ticket, error)
}

// Renderer is the external artifact collaborator.
type Renderer interface {
	Render(ticket models.Ticket) (*render.Artifact, error)
}

// EventPublisher streams issuance notifications. Optional.
type EventPublisher interface {
	PublishTicketIssued(ctx context.Context, orderID string, tickets []models.Ticket) error
}

type OrderService struct {
	Tickets    TicketStore
	Renderer   Renderer
	Events     EventPublisher
	Audit      *audit.Recorder
	Log        *logger.Logger
	Categories map[string]config.TicketCategory
}

func NewOrderService(store TicketStore, renderer Renderer, events EventPublisher, rec *audit.Recorder, log *logger.Logger, categories map[string]config.TicketCategory) *OrderService {
	return &OrderService{
		Tickets:    store,
		Renderer:   renderer,
		Events:     events,
		Audit:      rec,
		Log:        log,
		Categories: categories,
	}
}

type Attendee struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Category string `json:"category"`
}

type IssueRequest struct {
	ClientName    string     `json:"client_name"`
	ClientPhone   string     `json:"client_phone"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	Attendees     []Attendee `json:"attendees"`
}

type IssueResult struct {
	OrderID string          `json:"order_id"`
	Tickets []models.Ticket `json:"tickets"`
	Total   int64           `json:"total"`
}

// Issue creates one order of tickets. Either every ticket is persisted
// or none are.
func (s *OrderService) Issue(ctx context.Context, req IssueRequest, issuer *models.User) (*IssueResult, error) {
	if err := policy.Allow(issuer, policy.TicketsCreate); err != nil {
		return nil, err
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}

	orderID := utils.GenerateOrderID()
	now := time.Now().UTC()

	tickets := make([]models.Ticket, 0, len(req.Attendees))
	var total int64
	categoryCounts := make(map[string]int)

	for _, attendee := range req.Attendees {
		category := s.Categories[attendee.Category]
		tickets = append(tickets, models.Ticket{
			ID:            utils.GenerateTicketID(),
			OrderID:       orderID,
			Name:          strings.TrimSpace(attendee.Name),
			Phone:         strings.TrimSpace(attendee.Phone),
			Category:      attendee.Category,
			Price:         category.Price,
			ClientName:    strings.TrimSpace(req.ClientName),
			ClientPhone:   strings.TrimSpace(req.ClientPhone),
			PaymentMethod: req.PaymentMethod,
			CreatedBy:     issuer.ID,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		total += category.Price
		categoryCounts[attendee.Category]++
	}

	if err := s.Tickets.CreateBatch(ctx, tickets); err != nil {
		return nil, fmt.Errorf("persist order %s: %w", orderID, err)
	}
	s.Log.LogOrder("ISSUE", orderID, fmt.Sprintf("%d tickets persisted by user %d", len(tickets), issuer.ID))

	// Rendering is outside the transaction: a ticket may legitimately
	// exist without an artifact and be re-rendered later.
	for i := range tickets {
		s.renderTicket(ctx, &tickets[i])
	}

	s.Audit.Record(ctx, audit.Entry{
		UserID:     issuer.ID,
		Action:     audit.ActionTicketsCreate,
		EntityType: "order",
		EntityID:   orderID,
		Details: map[string]interface{}{
			"ticket_count": len(tickets),
			"categories":   categoryCounts,
			"total":        total,
		},
	})

	if s.Events != nil {
		if err := s.Events.PublishTicketIssued(ctx, orderID, tickets); err != nil {
			s.Log.Error("EVENTS", fmt.Sprintf("failed to publish issuance of %s: %v", orderID, err))
		}
	}

	return &IssueResult{OrderID: orderID, Tickets: tickets, Total: total}, nil
}

func (s *OrderService) renderTicket(ctx context.Context, ticket *models.Ticket) {
	artifact, err := s.Renderer.Render(*ticket)
	if err != nil {
		s.Log.Error("RENDER", fmt.Sprintf("failed to render ticket %s: %v", ticket.ID, err))
		return
	}
	if err := s.Tickets.UpdateArtifact(ctx, ticket.ID, artifact.QRPayload, artifact.DocumentRef); err != nil {
		s.Log.Error("RENDER", fmt.Sprintf("failed to store artifact for %s: %v", ticket.ID, err))
		return
	}
	ticket.QRPayload = artifact.QRPayload
	ticket.DocumentRef = artifact.DocumentRef
}

// RerenderMissing retries artifact rendering for tickets whose first
// attempt failed. Returns how many tickets were rendered.
func (s *OrderService) RerenderMissing(ctx context.Context, limit int) (int, error) {
	tickets, err := s.Tickets.ListMissingArtifacts(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list tickets missing artifacts: %w", err)
	}

	rendered := 0
	for i := range tickets {
		before := tickets[i].QRPayload
		s.renderTicket(ctx, &tickets[i])
		if tickets[i].QRPayload != before {
			rendered++
		}
	}
	return rendered, nil
}

func (s *OrderService) validate(req IssueRequest) error {
	var violations []string

	if strings.TrimSpace(req.ClientName) == "" {
		violations = append(violations, "client name is required")
	}
	if !phoneRE.MatchString(strings.TrimSpace(req.ClientPhone)) {
		violations = append(violations, "client phone is not a valid phone number")
	}

	if len(req.Attendees) < minAttendees {
		violations = append(violations, "at least one attendee is required")
	}
	if len(req.Attendees) > maxAttendees {
		violations = append(violations, fmt.Sprintf("at most %d attendees per order", maxAttendees))
	}

	for i, attendee := range req.Attendees {
		if len(strings.TrimSpace(attendee.Name)) < minAttendeeName {
			violations = append(violations, fmt.Sprintf("attendee %d: name must be at least %d characters", i+1, minAttendeeName))
		}
		if !phoneRE.MatchString(strings.TrimSpace(attendee.Phone)) {
			violations = append(violations, fmt.Sprintf("attendee %d: phone is not a valid phone number", i+1))
		}
		if _, ok := s.Categories[attendee.Category]; !ok {
			violations = append(violations, fmt.Sprintf("attendee %d: unknown category %q", i+1, attendee.Category))
		}
	}

	if len(violations) > 0 {
		return errs.Validation(violations...)
	}
	return nil
}
