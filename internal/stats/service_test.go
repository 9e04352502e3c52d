package stats_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/config"
	"gatekeeper/internal/errs"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
	"gatekeeper/internal/stats"
)

// MockStatsDB is a mock implementation of the StatsDBLayer interface
type MockStatsDB struct {
	mock.Mock
}

func (m *MockStatsDB) GlobalStats(ctx context.Context, createdBy int64) (*stats.GlobalRow, error) {
	args := m.Called(ctx, createdBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stats.GlobalRow), args.Error(1)
}

func (m *MockStatsDB) CategoryStats(ctx context.Context, createdBy int64) ([]stats.CategoryRow, error) {
	args := m.Called(ctx, createdBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stats.CategoryRow), args.Error(1)
}

func (m *MockStatsDB) VendorStats(ctx context.Context) ([]stats.VendorRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stats.VendorRow), args.Error(1)
}

func (m *MockStatsDB) OrderList(ctx context.Context, createdBy int64, page, limit int) ([]stats.OrderRow, int64, error) {
	args := m.Called(ctx, createdBy, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]stats.OrderRow), args.Get(1).(int64), args.Error(2)
}

func (m *MockStatsDB) TicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

func (m *MockStatsDB) UserStats(ctx context.Context) (*stats.UserRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stats.UserRow), args.Error(1)
}

var testCategories = map[string]config.TicketCategory{
	"vip":      {Price: 10000},
	"standard": {Price: 5000},
}

var (
	adminUser      = &models.User{ID: 1, Role: models.RoleAdmin}
	vendorUser     = &models.User{ID: 7, Role: models.RoleVendor}
	controllerUser = &models.User{ID: 9, Role: models.RoleController}
)

func newService(db *MockStatsDB) *stats.StatsService {
	return stats.NewStatsService(db, logger.NewLogger(), testCategories)
}

func TestGlobalAdminSeesEverything(t *testing.T) {
	db := new(MockStatsDB)
	svc := newService(db)

	db.On("GlobalStats", mock.Anything, int64(0)).
		Return(&stats.GlobalRow{Total: 200, Used: 50, Sent: 100, Revenue: 1_000_000, Orders: 40}, nil)
	db.On("CategoryStats", mock.Anything, int64(0)).
		Return([]stats.CategoryRow{
			{Category: "vip", Count: 60, Used: 20, Revenue: 600_000},
			{Category: "standard", Count: 140, Used: 30, Revenue: 400_000},
		}, nil)

	out, err := svc.Global(context.Background(), adminUser)
	require.NoError(t, err)
	assert.Equal(t, int64(200), out.Total)
	assert.Equal(t, int64(150), out.Available)
	assert.Equal(t, int64(25), out.UsageRate)
	assert.Equal(t, int64(50), out.SentRate)
	assert.Equal(t, int64(5000), out.AverageTicketPrice)
	assert.Equal(t, int64(5), out.AverageOrderSize)
	assert.Equal(t, int64(60), out.ByCategory["vip"])
}

func TestGlobalVendorScopedToSelf(t *testing.T) {
	db := new(MockStatsDB)
	svc := newService(db)

	db.On("GlobalStats", mock.Anything, vendorUser.ID).
		Return(&stats.GlobalRow{Total: 10, Used: 2, Revenue: 50_000, Orders: 3}, nil)
	db.On("CategoryStats", mock.Anything, vendorUser.ID).
		Return([]stats.CategoryRow{}, nil)

	out, err := svc.Global(context.Background(), vendorUser)
	require.NoError(t, err)
	assert.Equal(t, int64(10), out.Total)
	db.AssertExpectations(t)
}

func TestGlobalForbiddenForController(t *testing.T) {
	db := new(MockStatsDB)
	svc := newService(db)

	_, err := svc.Global(context.Background(), controllerUser)
	assert.True(t, errs.IsKind(err, errs.KindAuthorization))
	db.AssertNotCalled(t, "GlobalStats", mock.Anything, mock.Anything)
}

func TestGlobalEmptySystem(t *testing.T) {
	db := new(MockStatsDB)
	svc := newService(db)

	db.On("GlobalStats", mock.Anything, int64(0)).Return(&stats.GlobalRow{}, nil)
	db.On("CategoryStats", mock.Anything, int64(0)).Return([]stats.CategoryRow{}, nil)

	out, err := svc.Global(context.Background(), adminUser)
	require.NoError(t, err)
	// No division happens when nothing was issued.
	assert.Equal(t, int64(0), out.UsageRate)
	assert.Equal(t, int64(0), out.AverageTicketPrice)
	assert.Equal(t, int64(0), out.AverageOrderSize)
}

func TestVendorsAdminOnly(t *testing.T) {
	db := new(MockStatsDB)
	svc := newService(db)

	_, err := svc.Vendors(context.Background(), vendorUser)
	assert.True(t, errs.IsKind(err, errs.KindAuthorization))

	db.On("VendorStats", mock.Anything).Return([]stats.VendorRow{
		{ID: 7, Name: "Moussa", Tickets: 40, Revenue: 200_000, Used: 10},
	}, nil)

	out, err := svc.Vendors(context.Background(), adminUser)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(5000), out[0].AverageTicketPrice)
	assert.Equal(t, int64(25), out[0].UsageRate)
}

func TestByCategoryIncludesUnsoldCategories(t *testing.T) {
	db := new(MockStatsDB)
	svc := newService(db)

	db.On("CategoryStats", mock.Anything, int64(0)).
		Return([]stats.CategoryRow{{Category: "standard", Count: 30, Used: 6, Revenue: 150_000}}, nil)

	out, err := svc.ByCategory(context.Background(), adminUser)
	require.NoError(t, err)

	// vip appears with its configured price even though nothing sold.
	vip, ok := out["vip"]
	require.True(t, ok)
	assert.Equal(t, int64(10000), vip.Price)
	assert.Equal(t, int64(0), vip.Count)

	std := out["standard"]
	assert.Equal(t, int64(30), std.Count)
	assert.Equal(t, int64(100), std.Percentage)
}

func TestOrdersPagination(t *testing.T) {
	db := new(MockStatsDB)
	svc := newService(db)

	db.On("OrderList", mock.Anything, int64(0), 2, 10).
		Return([]stats.OrderRow{{OrderID: "ORDER-1"}}, int64(25), nil)

	out, err := svc.Orders(context.Background(), adminUser, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Pagination.Page)
	assert.Equal(t, 25, out.Pagination.Total)
	assert.Equal(t, 3, out.Pagination.TotalPages)
}

func TestOrderOwnership(t *testing.T) {
	db := new(MockStatsDB)
	svc := newService(db)

	tickets := []models.Ticket{
		{ID: "TKT-1", OrderID: "ORDER-9", Category: "vip", Price: 10000, Used: true, CreatedBy: 3, ClientName: "Awa"},
		{ID: "TKT-2", OrderID: "ORDER-9", Category: "standard", Price: 5000, Sent: true, CreatedBy: 3},
	}
	db.On("TicketsByOrder", mock.Anything, "ORDER-9").Return(tickets, nil)

	// Another vendor's order is off limits.
	_, err := svc.Order(context.Background(), vendorUser, "ORDER-9")
	assert.True(t, errs.IsKind(err, errs.KindAuthorization))

	out, err := svc.Order(context.Background(), adminUser, "ORDER-9")
	require.NoError(t, err)
	assert.Equal(t, 2, out.TicketCount)
	assert.Equal(t, int64(15000), out.Total)
	assert.Equal(t, 1, out.Used)
	assert.Equal(t, 1, out.Sent)
	assert.Equal(t, "Awa", out.ClientName)
	assert.Equal(t, int64(1), out.Categories["vip"])
}

func TestOrderNotFound(t *testing.T) {
	db := new(MockStatsDB)
	svc := newService(db)

	db.On("TicketsByOrder", mock.Anything, "ORDER-404").Return([]models.Ticket{}, nil)

	_, err := svc.Order(context.Background(), adminUser, "ORDER-404")
	assert.True(t, errs.IsNotFound(err))
}

func TestUsersAdminOnly(t *testing.T) {
	db := new(MockStatsDB)
	svc := newService(db)

	_, err := svc.Users(context.Background(), vendorUser)
	assert.True(t, errs.IsKind(err, errs.KindAuthorization))

	db.On("UserStats", mock.Anything).Return(&stats.UserRow{Total: 12, Active: 10}, nil)
	out, err := svc.Users(context.Background(), adminUser)
	require.NoError(t, err)
	assert.Equal(t, int64(12), out.Total)
}

func TestDashboard(t *testing.T) {
	db := new(MockStatsDB)
	svc := newService(db)

	db.On("GlobalStats", mock.Anything, int64(0)).Return(&stats.GlobalRow{Total: 10}, nil)
	db.On("CategoryStats", mock.Anything, int64(0)).Return([]stats.CategoryRow{}, nil)
	db.On("OrderList", mock.Anything, int64(0), 1, 5).Return([]stats.OrderRow{{OrderID: "ORDER-1"}}, int64(1), nil)
	db.On("VendorStats", mock.Anything).Return([]stats.VendorRow{}, nil)

	dash, err := svc.GetDashboard(context.Background(), adminUser)
	require.NoError(t, err)
	assert.Equal(t, int64(10), dash.Global.Total)
	require.Len(t, dash.RecentOrders, 1)
	assert.False(t, dash.LastUpdated.IsZero())
}

func TestDashboardVendorOmitsVendorRollup(t *testing.T) {
	db := new(MockStatsDB)
	svc := newService(db)

	db.On("GlobalStats", mock.Anything, vendorUser.ID).Return(&stats.GlobalRow{}, nil)
	db.On("CategoryStats", mock.Anything, vendorUser.ID).Return([]stats.CategoryRow{}, nil)
	db.On("OrderList", mock.Anything, vendorUser.ID, 1, 5).Return([]stats.OrderRow{}, int64(0), nil)

	dash, err := svc.GetDashboard(context.Background(), vendorUser)
	require.NoError(t, err)
	assert.Nil(t, dash.Vendors)
	db.AssertNotCalled(t, "VendorStats", mock.Anything)
}
