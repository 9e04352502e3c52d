package stats

import (
	"context"
	"time"

	"gatekeeper/internal/config"
	"gatekeeper/internal/errs"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
	"gatekeeper/internal/policy"
	"gatekeeper/internal/utils"
)

// StatsDBLayer is the aggregation queries the service runs.
type StatsDBLayer interface {
	GlobalStats(ctx context.Context, createdBy int64) (*GlobalRow, error)
	CategoryStats(ctx context.Context, createdBy int64) ([]CategoryRow, error)
	VendorStats(ctx context.Context) ([]VendorRow, error)
	OrderList(ctx context.Context, createdBy int64, page, limit int) ([]OrderRow, int64, error)
	TicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error)
	UserStats(ctx context.Context) (*UserRow, error)
}

type StatsService struct {
	DB         StatsDBLayer
	Log        *logger.Logger
	Categories map[string]config.TicketCategory
}

func NewStatsService(db StatsDBLayer, log *logger.Logger, categories map[string]config.TicketCategory) *StatsService {
	return &StatsService{DB: db, Log: log, Categories: categories}
}

// scope resolves how much of the data the caller may aggregate over.
// Admins see everything, vendors see their own issuance, controllers
// see nothing.
func (s *StatsService) scope(caller *models.User) (int64, error) {
	if policy.Allow(caller, policy.StatsReadAll) == nil {
		return 0, nil
	}
	if policy.Allow(caller, policy.StatsReadOwn) == nil {
		return caller.ID, nil
	}
	return 0, errs.Forbidden("statistics access denied")
}

// GlobalStats is the headline rollup plus derived rates.
type GlobalStats struct {
	Total              int64            `json:"total"`
	Used               int64            `json:"used"`
	Available          int64            `json:"available"`
	Sent               int64            `json:"sent"`
	ByCategory         map[string]int64 `json:"by_category"`
	Revenue            int64            `json:"revenue"`
	Orders             int64            `json:"orders"`
	UsageRate          int64            `json:"usage_rate"`
	SentRate           int64            `json:"sent_rate"`
	AverageTicketPrice int64            `json:"average_ticket_price"`
	AverageOrderSize   int64            `json:"average_order_size"`
}

func (s *StatsService) Global(ctx context.Context, caller *models.User) (*GlobalStats, error) {
	createdBy, err := s.scope(caller)
	if err != nil {
		return nil, err
	}

	row, err := s.DB.GlobalStats(ctx, createdBy)
	if err != nil {
		return nil, err
	}
	categories, err := s.DB.CategoryStats(ctx, createdBy)
	if err != nil {
		return nil, err
	}

	out := &GlobalStats{
		Total:      row.Total,
		Used:       row.Used,
		Available:  row.Total - row.Used,
		Sent:       row.Sent,
		Revenue:    row.Revenue,
		Orders:     row.Orders,
		ByCategory: make(map[string]int64, len(categories)),
	}
	for _, c := range categories {
		out.ByCategory[c.Category] = c.Count
	}
	if row.Total > 0 {
		out.UsageRate = roundedPercent(row.Used, row.Total)
		out.SentRate = roundedPercent(row.Sent, row.Total)
		out.AverageTicketPrice = roundedDiv(row.Revenue, row.Total)
	}
	if row.Orders > 0 {
		out.AverageOrderSize = roundedDiv(row.Total, row.Orders)
	}
	return out, nil
}

// VendorStats is one vendor's rollup with derived rates.
type VendorStats struct {
	VendorRow
	AverageTicketPrice int64 `json:"average_ticket_price"`
	UsageRate          int64 `json:"usage_rate"`
}

// Vendors returns per-vendor rollups sorted by revenue. Admin only.
func (s *StatsService) Vendors(ctx context.Context, caller *models.User) ([]VendorStats, error) {
	if err := policy.Allow(caller, policy.StatsReadAll); err != nil {
		return nil, err
	}

	rows, err := s.DB.VendorStats(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]VendorStats, 0, len(rows))
	for _, row := range rows {
		v := VendorStats{VendorRow: row}
		if row.Tickets > 0 {
			v.AverageTicketPrice = roundedDiv(row.Revenue, row.Tickets)
			v.UsageRate = roundedPercent(row.Used, row.Tickets)
		}
		out = append(out, v)
	}
	return out, nil
}

// CategoryStats describes one ticket category in the configured price
// list, even when no ticket of it was issued yet.
type CategoryStats struct {
	Count      int64 `json:"count"`
	Used       int64 `json:"used"`
	Percentage int64 `json:"percentage"`
	Price      int64 `json:"price"`
	Revenue    int64 `json:"revenue"`
}

func (s *StatsService) ByCategory(ctx context.Context, caller *models.User) (map[string]CategoryStats, error) {
	createdBy, err := s.scope(caller)
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.CategoryStats(ctx, createdBy)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, row := range rows {
		total += row.Count
	}

	out := make(map[string]CategoryStats, len(s.Categories))
	for key, cat := range s.Categories {
		out[key] = CategoryStats{Price: cat.Price}
	}
	for _, row := range rows {
		c := out[row.Category]
		c.Count = row.Count
		c.Used = row.Used
		c.Revenue = row.Revenue
		if total > 0 {
			c.Percentage = roundedPercent(row.Count, total)
		}
		out[row.Category] = c
	}
	return out, nil
}

// OrderPage is a page of order rollups.
type OrderPage struct {
	Orders     []OrderRow       `json:"orders"`
	Pagination utils.Pagination `json:"pagination"`
}

func (s *StatsService) Orders(ctx context.Context, caller *models.User, page, limit int) (*OrderPage, error) {
	createdBy, err := s.scope(caller)
	if err != nil {
		return nil, err
	}
	rows, total, err := s.DB.OrderList(ctx, createdBy, page, limit)
	if err != nil {
		return nil, err
	}
	return &OrderPage{
		Orders:     rows,
		Pagination: utils.NewPagination(page, limit, int(total)),
	}, nil
}

// OrderStats is the rollup of one issuance batch.
type OrderStats struct {
	OrderID     string           `json:"order_id"`
	TicketCount int              `json:"ticket_count"`
	Total       int64            `json:"total"`
	Used        int              `json:"used"`
	Sent        int              `json:"sent"`
	Categories  map[string]int64 `json:"categories"`
	ClientName  string           `json:"client_name"`
	ClientPhone string           `json:"client_phone"`
	CreatedAt   time.Time        `json:"created_at"`
}

func (s *StatsService) Order(ctx context.Context, caller *models.User, orderID string) (*OrderStats, error) {
	tickets, err := s.DB.TicketsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, errs.NotFound("order")
	}
	if err := policy.AllowOwn(caller, policy.StatsReadAll, policy.StatsReadOwn, tickets[0].CreatedBy); err != nil {
		return nil, err
	}

	out := &OrderStats{
		OrderID:     orderID,
		TicketCount: len(tickets),
		Categories:  make(map[string]int64),
		ClientName:  tickets[0].ClientName,
		ClientPhone: tickets[0].ClientPhone,
		CreatedAt:   tickets[0].CreatedAt,
	}
	for _, t := range tickets {
		out.Total += t.Price
		out.Categories[t.Category]++
		if t.Used {
			out.Used++
		}
		if t.Sent {
			out.Sent++
		}
	}
	return out, nil
}

// Users returns the account rollup. Admin only.
func (s *StatsService) Users(ctx context.Context, caller *models.User) (*UserRow, error) {
	if err := policy.Allow(caller, policy.StatsReadAll); err != nil {
		return nil, err
	}
	return s.DB.UserStats(ctx)
}

// Dashboard bundles the rollups one screen needs. Vendor stats are
// included for admins only.
type Dashboard struct {
	Global       *GlobalStats             `json:"global"`
	Categories   map[string]CategoryStats `json:"categories"`
	RecentOrders []OrderRow               `json:"recent_orders"`
	Vendors      []VendorStats            `json:"vendors,omitempty"`
	LastUpdated  time.Time                `json:"last_updated"`
}

func (s *StatsService) GetDashboard(ctx context.Context, caller *models.User) (*Dashboard, error) {
	global, err := s.Global(ctx, caller)
	if err != nil {
		return nil, err
	}
	categories, err := s.ByCategory(ctx, caller)
	if err != nil {
		return nil, err
	}
	createdBy, err := s.scope(caller)
	if err != nil {
		return nil, err
	}
	recent, _, err := s.DB.OrderList(ctx, createdBy, 1, 5)
	if err != nil {
		return nil, err
	}

	dash := &Dashboard{
		Global:       global,
		Categories:   categories,
		RecentOrders: recent,
		LastUpdated:  time.Now().UTC(),
	}
	if policy.Allow(caller, policy.StatsReadAll) == nil {
		vendors, err := s.Vendors(ctx, caller)
		if err != nil {
			return nil, err
		}
		dash.Vendors = vendors
	}
	return dash, nil
}

func roundedPercent(part, total int64) int64 {
	return (part*100 + total/2) / total
}

func roundedDiv(a, b int64) int64 {
	return (a + b/2) / b
}
