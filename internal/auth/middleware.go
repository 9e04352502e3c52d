package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"gatekeeper/internal/errs"
	"gatekeeper/internal/models"
	"gatekeeper/internal/utils"
)

type contextKey string

const userContextKey contextKey = "auth.user"

// CurrentUser returns the authenticated user stored by Middleware, or
// nil when the request was not authenticated.
func CurrentUser(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

// WithUser is used by tests to inject an authenticated user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// Middleware authenticates requests via the Authorization bearer
// header, loads the active user, and stores it on the request context.
func (s *AuthService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			utils.WriteError(w, errs.Authentication("missing_token", "authorization token required"))
			return
		}

		claims, err := s.Verify(r.Context(), token)
		if err != nil {
			utils.WriteError(w, err)
			return
		}

		user, err := s.DB.GetUserByID(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				utils.WriteError(w, errs.Authentication("invalid_token", "user no longer exists"))
				return
			}
			utils.WriteError(w, err)
			return
		}
		if !user.IsActive {
			utils.WriteError(w, errs.Authentication("account_disabled", "account is disabled"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
