package auth

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

func (d *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := database.WithRetry(ctx, d.Log, "auth.get_user_by_username", func() error {
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

func (d *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := database.WithRetry(ctx, d.Log, "auth.get_user", func() error {
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

func (d *DB) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return database.WithRetry(ctx, d.Log, "auth.save_refresh_token", func() error {
		_, err := d.Bun.NewInsert().Model(token).Exec(ctx)
		return err
	})
}

// GetActiveRefreshToken returns the persisted row only if it is neither
// revoked nor expired. Revocation is immediate: every refresh consults
// this row.
func (d *DB) GetActiveRefreshToken(ctx context.Context, token string, userID int64) (*models.RefreshToken, error) {
	var row models.RefreshToken
	err := database.WithRetry(ctx, d.Log, "auth.get_active_refresh_token", func() error {
		return d.Bun.NewSelect().
			Model(&row).
			Where("token = ? AND user_id = ? AND is_revoked = ? AND expires_at > ?",
				token, userID, false, time.Now().UTC()).
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) RevokeToken(ctx context.Context, userID int64, token string) error {
	return database.WithRetry(ctx, d.Log, "auth.revoke_token", func() error {
		_, err := d.Bun.NewUpdate().
			Model((*models.RefreshToken)(nil)).
			Set("is_revoked = ?", true).
			Where("user_id = ? AND token = ?", userID, token).
			Exec(ctx)
		return err
	})
}

func (d *DB) RevokeAllTokens(ctx context.Context, userID int64) error {
	return database.WithRetry(ctx, d.Log, "auth.revoke_all_tokens", func() error {
		_, err := d.Bun.NewUpdate().
			Model((*models.RefreshToken)(nil)).
			Set("is_revoked = ?", true).
			Where("user_id = ?", userID).
			Exec(ctx)
		return err
	})
}

// DeleteExpiredTokens is the periodic sweep removing expired and
// revoked rows.
func (d *DB) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	var removed int64
	err := database.WithRetry(ctx, d.Log, "auth.delete_expired_tokens", func() error {
		res, err := d.Bun.NewDelete().
			Model((*models.RefreshToken)(nil)).
			Where("expires_at < ? OR is_revoked = ?", time.Now().UTC(), true).
			Exec(ctx)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (d *DB) UpdateLastLogin(ctx context.Context, userID int64) error {
	return database.WithRetry(ctx, d.Log, "auth.update_last_login", func() error {
		_, err := d.Bun.NewUpdate().
			Model((*models.User)(nil)).
			Set("last_login = ?", time.Now().UTC()).
			Where("id = ?", userID).
			Exec(ctx)
		return err
	})
}
