package db

import (
	"context"
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

// CreateBatch persists all tickets of one order in a single
// transaction: either every row commits or none do.
func (d *DB) CreateBatch(ctx context.Context, tickets []models.Ticket) error {
	return database.WithRetry(ctx, d.Log, "tickets.create_batch", func() error {
		return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			for i := range tickets {
				if _, err := tx.NewInsert().Model(&tickets[i]).Exec(ctx); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func (d *DB) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := database.WithRetry(ctx, d.Log, "tickets.get", func() error {
		return d.Bun.NewSelect().
			Model(&ticket).
			ColumnExpr("ticket.*").
			ColumnExpr("u.name AS vendor_name").
			Join("LEFT JOIN users AS u ON u.id = ticket.created_by").
			Where("ticket.id = ?", id).
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// MarkUsed is the scan validator's single serialization point: a
// conditional update that only applies while used is still false. The
// boolean result reports whether this caller won the transition.
// Retrying a dropped connection is safe here: the predicate makes the
// write idempotent, so a replayed attempt either wins once or matches
// zero rows.
func (d *DB) MarkUsed(ctx context.Context, id string, scannerID int64, now time.Time) (bool, error) {
	var affected int64
	err := database.WithRetry(ctx, d.Log, "tickets.mark_used", func() error {
		res, err := d.Bun.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("used = ?", true).
			Set("used_at = ?", now).
			Set("scanned_by = ?", scannerID).
			Set("updated_at = ?", now).
			Where("id = ? AND used = ?", id, false).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// MarkSent sets sent_at once; repeat calls touch nothing, so the first
// delivery timestamp survives.
func (d *DB) MarkSent(ctx context.Context, id string, now time.Time) (bool, error) {
	var affected int64
	err := database.WithRetry(ctx, d.Log, "tickets.mark_sent", func() error {
		res, err := d.Bun.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("sent = ?", true).
			Set("sent_at = ?", now).
			Set("updated_at = ?", now).
			Where("id = ? AND sent = ?", id, false).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// DeleteUnused removes a ticket only while it has never been scanned.
func (d *DB) DeleteUnused(ctx context.Context, id string) (bool, error) {
	var affected int64
	err := database.WithRetry(ctx, d.Log, "tickets.delete_unused", func() error {
		res, err := d.Bun.NewDelete().
			Model((*models.Ticket)(nil)).
			Where("id = ? AND used = ?", id, false).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (d *DB) UpdateArtifact(ctx context.Context, id, qrPayload, documentRef string) error {
	return database.WithRetry(ctx, d.Log, "tickets.update_artifact", func() error {
		_, err := d.Bun.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("qr_payload = ?", qrPayload).
			Set("document_ref = ?", documentRef).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

// ListMissingArtifacts returns tickets whose rendering failed at
// issuance, for the out-of-band retry.
func (d *DB) ListMissingArtifacts(ctx context.Context, limit int) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := database.WithRetry(ctx, d.Log, "tickets.list_missing_artifacts", func() error {
		tickets = tickets[:0]
		return d.Bun.NewSelect().
			Model(&tickets).
			Where("qr_payload = '' OR qr_payload IS NULL").
			OrderExpr("created_at ASC").
			Limit(limit).
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// ListOptions filters and paginates ticket listings.
type ListOptions struct {
	Page      int
	Limit     int
	OrderID   string
	Category  string
	Used      *bool
	Sent      *bool
	CreatedBy int64
}

func (d *DB) List(ctx context.Context, opts ListOptions) ([]models.Ticket, int, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 || opts.Limit > 200 {
		opts.Limit = 50
	}

	var tickets []models.Ticket
	var count int
	err := database.WithRetry(ctx, d.Log, "tickets.list", func() error {
		tickets = tickets[:0]
		q := d.Bun.NewSelect().
			Model(&tickets).
			ColumnExpr("ticket.*").
			ColumnExpr("u.name AS vendor_name").
			Join("LEFT JOIN users AS u ON u.id = ticket.created_by")

		q = applyFilters(q, opts)

		var err error
		count, err = q.
			Order("ticket.created_at DESC").
			Limit(opts.Limit).
			Offset((opts.Page - 1) * opts.Limit).
			ScanAndCount(ctx)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return tickets, count, nil
}

func applyFilters(q *bun.SelectQuery, opts ListOptions) *bun.SelectQuery {
	if opts.OrderID != "" {
		q = q.Where("ticket.order_id = ?", opts.OrderID)
	}
	if opts.Category != "" {
		q = q.Where("ticket.category = ?", opts.Category)
	}
	if opts.Used != nil {
		q = q.Where("ticket.used = ?", *opts.Used)
	}
	if opts.Sent != nil {
		q = q.Where("ticket.sent = ?", *opts.Sent)
	}
	if opts.CreatedBy != 0 {
		q = q.Where("ticket.created_by = ?", opts.CreatedBy)
	}
	return q
}

func (d *DB) ListByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := database.WithRetry(ctx, d.Log, "tickets.list_by_order", func() error {
		tickets = tickets[:0]
		return d.Bun.NewSelect().
			Model(&tickets).
			ColumnExpr("ticket.*").
			ColumnExpr("u.name AS vendor_name").
			Join("LEFT JOIN users AS u ON u.id = ticket.created_by").
			Where("ticket.order_id = ?", orderID).
			OrderExpr("ticket.created_at ASC, ticket.id ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// InsertScanLog appends one scan attempt row. The table is append-only;
// nothing ever updates or deletes these rows.
func (d *DB) InsertScanLog(ctx context.Context, entry *models.ScanLog) error {
	return database.WithRetry(ctx, d.Log, "tickets.insert_scan_log", func() error {
		_, err := d.Bun.NewInsert().Model(entry).Exec(ctx)
		return err
	})
}
