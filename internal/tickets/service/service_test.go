package tickets_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/config"
	"gatekeeper/internal/errs"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
	"gatekeeper/internal/tickets/db"
	tickets "gatekeeper/internal/tickets/service"
)

// MockTicketDB is a mock implementation of the TicketDBLayer interface
type MockTicketDB struct {
	mock.Mock
}

func (m *MockTicketDB) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketDB) MarkUsed(ctx context.Context, id string, scannerID int64, now time.Time) (bool, error) {
	args := m.Called(ctx, id, scannerID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockTicketDB) MarkSent(ctx context.Context, id string, now time.Time) (bool, error) {
	args := m.Called(ctx, id, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockTicketDB) DeleteUnused(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockTicketDB) List(ctx context.Context, opts db.ListOptions) ([]models.Ticket, int, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Ticket), args.Int(1), args.Error(2)
}

func (m *MockTicketDB) ListByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

func (m *MockTicketDB) InsertScanLog(ctx context.Context, entry *models.ScanLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func newService(mockDB *MockTicketDB) *tickets.TicketService {
	return tickets.NewTicketService(mockDB, nil, nil, logger.NewLogger(), config.EventConfig{
		Name:     "Test Event",
		Venue:    "Test Hall",
		Date:     "2026-12-05",
		Time:     "22:00",
		Currency: "XOF",
	})
}

var (
	adminUser      = &models.User{ID: 1, Role: models.RoleAdmin}
	vendorUser     = &models.User{ID: 7, Role: models.RoleVendor}
	controllerUser = &models.User{ID: 9, Role: models.RoleController}
)

func TestScanFirstAttemptWins(t *testing.T) {
	mockDB := new(MockTicketDB)
	svc := newService(mockDB)

	ticket := &models.Ticket{ID: "TKT-1", Name: "Awa", Category: "vip", Used: true, ScannedBy: 9}
	mockDB.On("MarkUsed", mock.Anything, "TKT-1", int64(9), mock.Anything).Return(true, nil)
	mockDB.On("GetByID", mock.Anything, "TKT-1").Return(ticket, nil)
	mockDB.On("InsertScanLog", mock.Anything, mock.MatchedBy(func(e *models.ScanLog) bool {
		return e.TicketID == "TKT-1" && e.Result == models.ScanResultSuccess
	})).Return(nil)

	outcome, err := svc.Scan(context.Background(), "TKT-1", controllerUser)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, "TKT-1", outcome.Ticket.ID)
	mockDB.AssertExpectations(t)
}

func TestScanAlreadyUsed(t *testing.T) {
	mockDB := new(MockTicketDB)
	svc := newService(mockDB)

	usedAt := time.Date(2026, 6, 1, 20, 30, 0, 0, time.UTC)
	ticket := &models.Ticket{ID: "TKT-1", Used: true, UsedAt: usedAt, ScannedBy: 4}
	mockDB.On("MarkUsed", mock.Anything, "TKT-1", int64(9), mock.Anything).Return(false, nil)
	mockDB.On("GetByID", mock.Anything, "TKT-1").Return(ticket, nil)
	mockDB.On("InsertScanLog", mock.Anything, mock.MatchedBy(func(e *models.ScanLog) bool {
		return e.Result == models.ScanResultFailed && e.FailureReason == models.ScanFailureAlreadyUsed
	})).Return(nil)

	outcome, err := svc.Scan(context.Background(), "TKT-1", controllerUser)
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, "ticket already used", outcome.Message)
	assert.Contains(t, outcome.Details, "by user 4")
	mockDB.AssertExpectations(t)
}

func TestScanUnknownTicket(t *testing.T) {
	mockDB := new(MockTicketDB)
	svc := newService(mockDB)

	mockDB.On("MarkUsed", mock.Anything, "TKT-ghost", int64(9), mock.Anything).Return(false, nil)
	mockDB.On("GetByID", mock.Anything, "TKT-ghost").Return(nil, sql.ErrNoRows)
	mockDB.On("InsertScanLog", mock.Anything, mock.MatchedBy(func(e *models.ScanLog) bool {
		return e.FailureReason == models.ScanFailureNotFound
	})).Return(nil)

	outcome, err := svc.Scan(context.Background(), "TKT-ghost", controllerUser)
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, "ticket not found", outcome.Message)
	assert.Nil(t, outcome.Ticket)
	mockDB.AssertExpectations(t)
}

func TestScanRequiresPermission(t *testing.T) {
	mockDB := new(MockTicketDB)
	svc := newService(mockDB)

	noScanner := &models.User{ID: 2, Role: "viewer"}
	_, err := svc.Scan(context.Background(), "TKT-1", noScanner)
	assert.True(t, errs.IsKind(err, errs.KindAuthorization))
	mockDB.AssertNotCalled(t, "MarkUsed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetOwnership(t *testing.T) {
	mockDB := new(MockTicketDB)
	svc := newService(mockDB)

	ticket := &models.Ticket{ID: "TKT-1", CreatedBy: 7}
	mockDB.On("GetByID", mock.Anything, "TKT-1").Return(ticket, nil)

	// Owner and admin pass.
	got, err := svc.Get(context.Background(), "TKT-1", vendorUser)
	require.NoError(t, err)
	assert.Equal(t, "TKT-1", got.ID)

	_, err = svc.Get(context.Background(), "TKT-1", adminUser)
	assert.NoError(t, err)

	// Another vendor does not.
	otherVendor := &models.User{ID: 8, Role: models.RoleVendor}
	_, err = svc.Get(context.Background(), "TKT-1", otherVendor)
	assert.True(t, errs.IsKind(err, errs.KindAuthorization))
}

func TestListScopesNonAdmin(t *testing.T) {
	mockDB := new(MockTicketDB)
	svc := newService(mockDB)

	// The vendor asks for someone else's tickets; the service rewrites
	// the filter to their own id.
	mockDB.On("List", mock.Anything, mock.MatchedBy(func(opts db.ListOptions) bool {
		return opts.CreatedBy == 7
	})).Return([]models.Ticket{}, 0, nil)

	_, _, err := svc.List(context.Background(), db.ListOptions{CreatedBy: 99}, vendorUser)
	require.NoError(t, err)
	mockDB.AssertExpectations(t)

	// Controllers cannot list at all.
	_, _, err = svc.List(context.Background(), db.ListOptions{}, controllerUser)
	assert.True(t, errs.IsKind(err, errs.KindAuthorization))
}

func TestMarkSentIdempotent(t *testing.T) {
	mockDB := new(MockTicketDB)
	svc := newService(mockDB)

	ticket := &models.Ticket{ID: "TKT-1", CreatedBy: 7, Sent: true}
	mockDB.On("GetByID", mock.Anything, "TKT-1").Return(ticket, nil)
	mockDB.On("MarkSent", mock.Anything, "TKT-1", mock.Anything).Return(false, nil).Once()

	// Repeat call: no reload, the ticket comes back unchanged.
	got, err := svc.MarkSent(context.Background(), "TKT-1", vendorUser)
	require.NoError(t, err)
	assert.True(t, got.Sent)
	mockDB.AssertExpectations(t)
}

func TestDeleteUsedTicketConflict(t *testing.T) {
	mockDB := new(MockTicketDB)
	svc := newService(mockDB)

	mockDB.On("GetByID", mock.Anything, "TKT-1").Return(&models.Ticket{ID: "TKT-1", Used: true}, nil)

	err := svc.Delete(context.Background(), "TKT-1", adminUser)
	assert.True(t, errs.IsConflict(err))
	mockDB.AssertNotCalled(t, "DeleteUnused", mock.Anything, mock.Anything)
}

func TestDeleteLosesRaceWithScan(t *testing.T) {
	mockDB := new(MockTicketDB)
	svc := newService(mockDB)

	mockDB.On("GetByID", mock.Anything, "TKT-1").Return(&models.Ticket{ID: "TKT-1", Used: false}, nil)
	mockDB.On("DeleteUnused", mock.Anything, "TKT-1").Return(false, nil)

	err := svc.Delete(context.Background(), "TKT-1", adminUser)
	assert.True(t, errs.IsConflict(err))
	mockDB.AssertExpectations(t)
}

func TestDeleteRequiresAdmin(t *testing.T) {
	mockDB := new(MockTicketDB)
	svc := newService(mockDB)

	err := svc.Delete(context.Background(), "TKT-1", vendorUser)
	assert.True(t, errs.IsKind(err, errs.KindAuthorization))
	mockDB.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestDeliveryMessage(t *testing.T) {
	mockDB := new(MockTicketDB)
	svc := newService(mockDB)

	ticket := &models.Ticket{ID: "TKT-1", Name: "Awa Diallo", Category: "vip", Price: 10000, CreatedBy: 7}
	mockDB.On("GetByID", mock.Anything, "TKT-1").Return(ticket, nil)

	msg, err := svc.DeliveryMessage(context.Background(), "TKT-1", vendorUser)
	require.NoError(t, err)
	assert.Contains(t, msg, "Test Event")
	assert.Contains(t, msg, "Awa Diallo")
	assert.Contains(t, msg, "10000 XOF")
	assert.Contains(t, msg, "TKT-1")
}
