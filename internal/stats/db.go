// Package stats computes reporting rollups over tickets and users.
// Numbers are aggregated fresh on every call, nothing is cached.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"gatekeeper/internal/database"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
)

type DB struct {
	Bun *bun.DB
	Log *logger.Logger
}

func NewDB(db *bun.DB, log *logger.Logger) *DB {
	return &DB{Bun: db, Log: log}
}

// GlobalRow is the single-row ticket rollup. createdBy scopes the
// aggregation to one issuer; 0 means everyone.
type GlobalRow struct {
	Total   int64 `bun:"total"`
	Used    int64 `bun:"used"`
	Sent    int64 `bun:"sent"`
	Revenue int64 `bun:"revenue"`
	Orders  int64 `bun:"orders"`
}

func (d *DB) GlobalStats(ctx context.Context, createdBy int64) (*GlobalRow, error) {
	var row GlobalRow
	err := database.WithRetry(ctx, d.Log, "stats.global", func() error {
		q := d.Bun.NewSelect().
			Model((*models.Ticket)(nil)).
			ColumnExpr("COUNT(*) AS total").
			ColumnExpr("COUNT(CASE WHEN used THEN 1 END) AS used").
			ColumnExpr("COUNT(CASE WHEN sent THEN 1 END) AS sent").
			ColumnExpr("COALESCE(SUM(price), 0) AS revenue").
			ColumnExpr("COUNT(DISTINCT order_id) AS orders")
		if createdBy != 0 {
			q = q.Where("created_by = ?", createdBy)
		}
		return q.Scan(ctx, &row)
	})
	if err != nil {
		return nil, fmt.Errorf("global stats: %w", err)
	}
	return &row, nil
}

// CategoryRow counts tickets of one category.
type CategoryRow struct {
	Category string `bun:"category"`
	Count    int64  `bun:"count"`
	Used     int64  `bun:"used"`
	Revenue  int64  `bun:"revenue"`
}

func (d *DB) CategoryStats(ctx context.Context, createdBy int64) ([]CategoryRow, error) {
	var rows []CategoryRow
	err := database.WithRetry(ctx, d.Log, "stats.categories", func() error {
		rows = rows[:0]
		q := d.Bun.NewSelect().
			Model((*models.Ticket)(nil)).
			ColumnExpr("category").
			ColumnExpr("COUNT(*) AS count").
			ColumnExpr("COUNT(CASE WHEN used THEN 1 END) AS used").
			ColumnExpr("COALESCE(SUM(price), 0) AS revenue").
			GroupExpr("category")
		if createdBy != 0 {
			q = q.Where("created_by = ?", createdBy)
		}
		return q.Scan(ctx, &rows)
	})
	if err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}
	return rows, nil
}

// VendorRow is the per-issuer rollup, one row per vendor account even
// when they have issued nothing yet.
type VendorRow struct {
	ID      int64  `bun:"id"`
	Name    string `bun:"name"`
	Phone   string `bun:"phone"`
	Tickets int64  `bun:"tickets"`
	Revenue int64  `bun:"revenue"`
	Used    int64  `bun:"used"`
	Orders  int64  `bun:"orders"`
}

func (d *DB) VendorStats(ctx context.Context) ([]VendorRow, error) {
	var rows []VendorRow
	err := database.WithRetry(ctx, d.Log, "stats.vendors", func() error {
		rows = rows[:0]
		return d.Bun.NewSelect().
			TableExpr("users AS u").
			ColumnExpr("u.id").
			ColumnExpr("u.name").
			ColumnExpr("u.phone").
			ColumnExpr("COUNT(t.id) AS tickets").
			ColumnExpr("COALESCE(SUM(t.price), 0) AS revenue").
			ColumnExpr("COUNT(CASE WHEN t.used THEN 1 END) AS used").
			ColumnExpr("COUNT(DISTINCT t.order_id) AS orders").
			Join("LEFT JOIN tickets AS t ON t.created_by = u.id").
			Where("u.role = ?", models.RoleVendor).
			GroupExpr("u.id, u.name, u.phone").
			OrderExpr("revenue DESC").
			Scan(ctx, &rows)
	})
	if err != nil {
		return nil, fmt.Errorf("vendor stats: %w", err)
	}
	return rows, nil
}

// OrderRow is one issuance batch collapsed to a single row.
type OrderRow struct {
	OrderID     string    `bun:"order_id" json:"order_id"`
	ClientName  string    `bun:"client_name" json:"client_name"`
	ClientPhone string    `bun:"client_phone" json:"client_phone"`
	CreatedAt   time.Time `bun:"created_at" json:"created_at"`
	CreatedBy   int64     `bun:"created_by" json:"created_by"`
	VendorName  string    `bun:"vendor_name" json:"vendor_name"`
	TicketCount int64     `bun:"ticket_count" json:"ticket_count"`
	Total       int64     `bun:"total" json:"total"`
}

// OrderList returns order rollups newest first, plus the total number
// of distinct orders matching the scope.
func (d *DB) OrderList(ctx context.Context, createdBy int64, page, limit int) ([]OrderRow, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	var rows []OrderRow
	err := database.WithRetry(ctx, d.Log, "stats.orders", func() error {
		rows = rows[:0]
		q := d.Bun.NewSelect().
			TableExpr("tickets AS t").
			ColumnExpr("t.order_id").
			ColumnExpr("t.client_name").
			ColumnExpr("t.client_phone").
			ColumnExpr("MIN(t.created_at) AS created_at").
			ColumnExpr("t.created_by").
			ColumnExpr("COALESCE(u.name, '') AS vendor_name").
			ColumnExpr("COUNT(t.id) AS ticket_count").
			ColumnExpr("SUM(t.price) AS total").
			Join("LEFT JOIN users AS u ON u.id = t.created_by").
			GroupExpr("t.order_id, t.client_name, t.client_phone, t.created_by, u.name").
			OrderExpr("MIN(t.created_at) DESC").
			Limit(limit).
			Offset((page - 1) * limit)
		if createdBy != 0 {
			q = q.Where("t.created_by = ?", createdBy)
		}
		return q.Scan(ctx, &rows)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("order list: %w", err)
	}

	var total int64
	err = database.WithRetry(ctx, d.Log, "stats.order_count", func() error {
		countQ := d.Bun.NewSelect().
			Model((*models.Ticket)(nil)).
			ColumnExpr("COUNT(DISTINCT order_id)")
		if createdBy != 0 {
			countQ = countQ.Where("created_by = ?", createdBy)
		}
		return countQ.Scan(ctx, &total)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("order count: %w", err)
	}
	return rows, total, nil
}

func (d *DB) TicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := database.WithRetry(ctx, d.Log, "stats.tickets_by_order", func() error {
		tickets = tickets[:0]
		return d.Bun.NewSelect().
			Model(&tickets).
			Where("order_id = ?", orderID).
			Order("created_at ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("tickets of order %s: %w", orderID, err)
	}
	return tickets, nil
}

// UserRow is the account rollup for the admin dashboard.
type UserRow struct {
	Total          int64 `bun:"total" json:"total"`
	Admins         int64 `bun:"admins" json:"admins"`
	Vendors        int64 `bun:"vendors" json:"vendors"`
	Controllers    int64 `bun:"controllers" json:"controllers"`
	Active         int64 `bun:"active" json:"active"`
	Inactive       int64 `bun:"inactive" json:"inactive"`
	ActiveLastWeek int64 `bun:"active_last_week" json:"active_last_week"`
}

func (d *DB) UserStats(ctx context.Context) (*UserRow, error) {
	weekAgo := time.Now().UTC().AddDate(0, 0, -7)

	var row UserRow
	err := database.WithRetry(ctx, d.Log, "stats.users", func() error {
		return d.Bun.NewSelect().
			Model((*models.User)(nil)).
			ColumnExpr("COUNT(*) AS total").
			ColumnExpr("COUNT(CASE WHEN role = ? THEN 1 END) AS admins", models.RoleAdmin).
			ColumnExpr("COUNT(CASE WHEN role = ? THEN 1 END) AS vendors", models.RoleVendor).
			ColumnExpr("COUNT(CASE WHEN role = ? THEN 1 END) AS controllers", models.RoleController).
			ColumnExpr("COUNT(CASE WHEN is_active THEN 1 END) AS active").
			ColumnExpr("COUNT(CASE WHEN NOT is_active THEN 1 END) AS inactive").
			ColumnExpr("COUNT(CASE WHEN last_login > ? THEN 1 END) AS active_last_week", weekAgo).
			Scan(ctx, &row)
	})
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	return &row, nil
}
