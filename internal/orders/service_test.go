package orders_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/config"
	"gatekeeper/internal/errs"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
	"gatekeeper/internal/orders"
	"gatekeeper/internal/render"
)

// MockTicketStore is a mock implementation of the TicketStore interface
type MockTicketStore struct {
	mock.Mock
}

func (m *MockTicketStore) CreateBatch(ctx context.Context, tickets []models.Ticket) error {
	args := m.Called(ctx, tickets)
	return args.Error(0)
}

func (m *MockTicketStore) UpdateArtifact(ctx context.Context, id, qrPayload, documentRef string) error {
	args := m.Called(ctx, id, qrPayload, documentRef)
	return args.Error(0)
}

func (m *MockTicketStore) ListMissingArtifacts(ctx context.Context, limit int) ([]models.Ticket, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

// MockRenderer is a mock implementation of the Renderer interface
type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(ticket models.Ticket) (*render.Artifact, error) {
	args := m.Called(ticket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*render.Artifact), args.Error(1)
}

func testCategories() map[string]config.TicketCategory {
	return map[string]config.TicketCategory{
		"vip":      {Name: "VIP", Price: 10000},
		"standard": {Name: "Standard", Price: 5000},
	}
}

func newService(store *MockTicketStore, renderer *MockRenderer) *orders.OrderService {
	return orders.NewOrderService(store, renderer, nil, nil, logger.NewLogger(), testCategories())
}

func validRequest() orders.IssueRequest {
	return orders.IssueRequest{
		ClientName:  "Moussa Ba",
		ClientPhone: "+221770000000",
		Attendees: []orders.Attendee{
			{Name: "Awa Diallo", Phone: "+221771234567", Category: "vip"},
			{Name: "Omar Sy", Phone: "+221772345678", Category: "standard"},
		},
	}
}

var vendorUser = &models.User{ID: 7, Role: models.RoleVendor}

func TestIssueOrder(t *testing.T) {
	store := new(MockTicketStore)
	renderer := new(MockRenderer)
	svc := newService(store, renderer)

	store.On("CreateBatch", mock.Anything, mock.MatchedBy(func(tickets []models.Ticket) bool {
		return len(tickets) == 2
	})).Return(nil)
	renderer.On("Render", mock.Anything).Return(&render.Artifact{QRPayload: "payload", DocumentRef: "ref.png"}, nil)
	store.On("UpdateArtifact", mock.Anything, mock.Anything, "payload", "ref.png").Return(nil)

	result, err := svc.Issue(context.Background(), validRequest(), vendorUser)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.OrderID, "ORDER-"))
	assert.Equal(t, int64(15000), result.Total)
	require.Len(t, result.Tickets, 2)

	for _, ticket := range result.Tickets {
		assert.Equal(t, result.OrderID, ticket.OrderID)
		assert.Equal(t, int64(7), ticket.CreatedBy)
		assert.False(t, ticket.Used)
		assert.Equal(t, "payload", ticket.QRPayload)
	}
	assert.Equal(t, int64(10000), result.Tickets[0].Price)
	assert.Equal(t, int64(5000), result.Tickets[1].Price)

	store.AssertExpectations(t)
	renderer.AssertExpectations(t)
}

func TestIssueCollectsAllViolations(t *testing.T) {
	store := new(MockTicketStore)
	svc := newService(store, new(MockRenderer))

	req := orders.IssueRequest{
		ClientName:  "",
		ClientPhone: "nope",
		Attendees: []orders.Attendee{
			{Name: "A", Phone: "bad", Category: "platinum"},
		},
	}

	_, err := svc.Issue(context.Background(), req, vendorUser)
	require.Error(t, err)

	e, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindValidation, e.Kind)
	assert.Len(t, e.Violations, 5)

	store.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
}

func TestIssueEmptyAttendees(t *testing.T) {
	svc := newService(new(MockTicketStore), new(MockRenderer))

	req := validRequest()
	req.Attendees = nil

	_, err := svc.Issue(context.Background(), req, vendorUser)
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestIssueTooManyAttendees(t *testing.T) {
	svc := newService(new(MockTicketStore), new(MockRenderer))

	req := validRequest()
	req.Attendees = nil
	for i := 0; i < 51; i++ {
		req.Attendees = append(req.Attendees, orders.Attendee{
			Name: "Awa Diallo", Phone: "+221771234567", Category: "vip",
		})
	}

	_, err := svc.Issue(context.Background(), req, vendorUser)
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestIssueForbiddenForController(t *testing.T) {
	store := new(MockTicketStore)
	svc := newService(store, new(MockRenderer))

	controller := &models.User{ID: 9, Role: models.RoleController}
	_, err := svc.Issue(context.Background(), validRequest(), controller)
	assert.True(t, errs.IsKind(err, errs.KindAuthorization))
	store.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
}

func TestIssueStoreFailure(t *testing.T) {
	store := new(MockTicketStore)
	svc := newService(store, new(MockRenderer))

	store.On("CreateBatch", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	_, err := svc.Issue(context.Background(), validRequest(), vendorUser)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist order")
}

func TestIssueSurvivesRenderFailure(t *testing.T) {
	store := new(MockTicketStore)
	renderer := new(MockRenderer)
	svc := newService(store, renderer)

	store.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)
	renderer.On("Render", mock.Anything).Return(nil, errors.New("qr encode failed"))

	// Tickets are issued even when rendering fails; artifacts are filled
	// in later by the retry pass.
	result, err := svc.Issue(context.Background(), validRequest(), vendorUser)
	require.NoError(t, err)
	for _, ticket := range result.Tickets {
		assert.Empty(t, ticket.QRPayload)
	}
	store.AssertNotCalled(t, "UpdateArtifact", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRerenderMissing(t *testing.T) {
	store := new(MockTicketStore)
	renderer := new(MockRenderer)
	svc := newService(store, renderer)

	missing := []models.Ticket{{ID: "TKT-1"}, {ID: "TKT-2"}}
	store.On("ListMissingArtifacts", mock.Anything, 10).Return(missing, nil)
	renderer.On("Render", mock.Anything).Return(&render.Artifact{QRPayload: "p", DocumentRef: "r"}, nil)
	store.On("UpdateArtifact", mock.Anything, mock.Anything, "p", "r").Return(nil)

	rendered, err := svc.RerenderMissing(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, rendered)
}
