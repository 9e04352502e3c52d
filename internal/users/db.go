package users

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

func (d *DB) CreateUser(ctx context.Context, user *models.User) error {
	return database.WithRetry(ctx, d.Log, "users.create", func() error {
		_, err := d.Bun.NewInsert().Model(user).Exec(ctx)
		return err
	})
}

func (d *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := database.WithRetry(ctx, d.Log, "users.get", func() error {
		return d.Bun.NewSelect().
			Model(&user).
			Where("id = ?", id).
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := database.WithRetry(ctx, d.Log, "users.get_by_username", func() error {
		return d.Bun.NewSelect().
			Model(&user).
			Where("username = ?", username).
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UsernameExists reports whether a username is already taken,
// optionally excluding one user id (for updates).
func (d *DB) UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error) {
	var exists bool
	err := database.WithRetry(ctx, d.Log, "users.username_exists", func() error {
		q := d.Bun.NewSelect().
			Model((*models.User)(nil)).
			Where("username = ?", username)
		if excludeID != 0 {
			q = q.Where("id != ?", excludeID)
		}
		var err error
		exists, err = q.Exists(ctx)
		return err
	})
	return exists, err
}

// ListOptions filters and paginates user listings.
type ListOptions struct {
	Page   int
	Limit  int
	Role   string
	Active *bool
	Search string
}

func (d *DB) ListUsers(ctx context.Context, opts ListOptions) ([]models.User, int, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 || opts.Limit > 200 {
		opts.Limit = 50
	}

	var users []models.User
	var count int
	err := database.WithRetry(ctx, d.Log, "users.list", func() error {
		users = users[:0]
		q := d.Bun.NewSelect().Model(&users)

		if opts.Role != "" {
			q = q.Where("role = ?", opts.Role)
		}
		if opts.Active != nil {
			q = q.Where("is_active = ?", *opts.Active)
		}
		if opts.Search != "" {
			pattern := "%" + opts.Search + "%"
			q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.WhereOr("username LIKE ?", pattern).
					WhereOr("name LIKE ?", pattern)
			})
		}

		var err error
		count, err = q.
			Order("created_at DESC").
			Limit(opts.Limit).
			Offset((opts.Page - 1) * opts.Limit).
			ScanAndCount(ctx)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return users, count, nil
}

func (d *DB) UpdateUser(ctx context.Context, user *models.User, columns ...string) error {
	user.UpdatedAt = time.Now().UTC()
	columns = append(columns, "updated_at")
	return database.WithRetry(ctx, d.Log, "users.update", func() error {
		_, err := d.Bun.NewUpdate().
			Model(user).
			Column(columns...).
			Where("id = ?", user.ID).
			Exec(ctx)
		return err
	})
}

func (d *DB) SetActive(ctx context.Context, id int64, active bool) error {
	return database.WithRetry(ctx, d.Log, "users.set_active", func() error {
		_, err := d.Bun.NewUpdate().
			Model((*models.User)(nil)).
			Set("is_active = ?", active).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

func (d *DB) DeleteUser(ctx context.Context, id int64) error {
	return database.WithRetry(ctx, d.Log, "users.delete", func() error {
		_, err := d.Bun.NewDelete().
			Model((*models.User)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

// CountTicketsByIssuer backs the purge precondition: a user with issued
// tickets can only be deactivated, never hard-deleted.
func (d *DB) CountTicketsByIssuer(ctx context.Context, userID int64) (int, error) {
	var count int
	err := database.WithRetry(ctx, d.Log, "users.count_tickets", func() error {
		var err error
		count, err = d.Bun.NewSelect().
			Model((*models.Ticket)(nil)).
			Where("created_by = ?", userID).
			Count(ctx)
		return err
	})
	return count, err
}
