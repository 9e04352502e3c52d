// Package auth is the credential service: bcrypt password hashing, JWT
// access tokens, persisted revocable refresh tokens, and the HTTP
// middleware feeding the rest of the system an authenticated user.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/config"
	"gatekeeper/internal/errs"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
)

const tokenTypeRefresh = "refresh"

// Claims is the JWT payload for both access and refresh tokens.
type Claims struct {
	UserID    int64  `json:"uid"`
	Username  string `json:"username,omitempty"`
	Role      string `json:"role,omitempty"`
	TokenType string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// AuthDBLayer persists users' credentials and refresh tokens.
type AuthDBLayer interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	GetActiveRefreshToken(ctx context.Context, token string, userID int64) (*models.RefreshToken, error)
	RevokeToken(ctx context.Context, userID int64, token string) error
	RevokeAllTokens(ctx context.Context, userID int64) error
	DeleteExpiredTokens(ctx context.Context) (int64, error)
	UpdateLastLogin(ctx context.Context, userID int64) error
}

type AuthService struct {
	DB    AuthDBLayer
	Cache *TokenCache
	Audit *audit.Recorder
	Log   *logger.Logger
	cfg   config.JWTConfig
}

func NewAuthService(db AuthDBLayer, cache *TokenCache, rec *audit.Recorder, log *logger.Logger, cfg config.JWTConfig) *AuthService {
	return &AuthService{DB: db, Cache: cache, Audit: rec, Log: log, cfg: cfg}
}

type LoginResult struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user"`
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.DB.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.Log.LogAuth("login_failed", 0, false)
			return nil, errs.Authentication("invalid_credentials", "invalid credentials")
		}
		return nil, fmt.Errorf("lookup user %q: %w", username, err)
	}

	if !user.IsActive {
		s.Log.LogAuth("login_failed_inactive", user.ID, false)
		return nil, errs.Authentication("account_disabled", "account is disabled")
	}

	if err := s.ComparePassword(user.Password, password); err != nil {
		s.Log.LogSecurity("login_failure", fmt.Sprintf("password mismatch for user %d", user.ID))
		return nil, errs.Authentication("invalid_credentials", "invalid credentials")
	}

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, expiresAt, err := s.generateRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.DB.SaveRefreshToken(ctx, &models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	if err := s.DB.UpdateLastLogin(ctx, user.ID); err != nil {
		s.Log.Error("AUTH", fmt.Sprintf("failed to update last login for user %d: %v", user.ID, err))
	}

	s.Log.LogAuth("login_success", user.ID, true)
	s.Audit.Record(ctx, audit.Entry{
		UserID:     user.ID,
		Action:     audit.ActionLogin,
		EntityType: "auth",
		Details:    map[string]interface{}{"username": user.Username},
	})

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, userID int64, refreshToken string) error {
	if err := s.DB.RevokeToken(ctx, userID, refreshToken); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.Log.LogAuth("logout", userID, true)
	s.Audit.Record(ctx, audit.Entry{
		UserID:     userID,
		Action:     audit.ActionLogout,
		EntityType: "auth",
	})
	return nil
}

type RefreshResult struct {
	AccessToken string       `json:"access_token"`
	User        *models.User `json:"user"`
}

// Refresh exchanges a valid, unrevoked refresh token for a new access
// token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := s.parseToken(refreshToken)
	if err != nil || claims.TokenType != tokenTypeRefresh {
		return nil, errs.Authentication("invalid_token", "invalid or expired refresh token")
	}

	if _, err := s.DB.GetActiveRefreshToken(ctx, refreshToken, claims.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.Log.LogSecurity("refresh_reuse", fmt.Sprintf("revoked or expired refresh token presented for user %d", claims.UserID))
			return nil, errs.Authentication("invalid_token", "refresh token revoked or expired")
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	user, err := s.DB.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.Authentication("invalid_token", "user no longer exists")
		}
		return nil, fmt.Errorf("lookup user %d: %w", claims.UserID, err)
	}
	if !user.IsActive {
		return nil, errs.Authentication("account_disabled", "account is disabled")
	}

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &RefreshResult{AccessToken: accessToken, User: user}, nil
}

// Verify checks an access token and returns its claims. Recently
// verified tokens are served from the redis cache without touching the
// signature again.
func (s *AuthService) Verify(ctx context.Context, token string) (*Claims, error) {
	if claims, ok := s.Cache.Get(ctx, token); ok {
		return claims, nil
	}

	claims, err := s.parseToken(token)
	if err != nil {
		return nil, errs.Authentication("invalid_token", "invalid or expired token")
	}
	if claims.TokenType == tokenTypeRefresh {
		return nil, errs.Authentication("invalid_token", "refresh token cannot be used for access")
	}

	s.Cache.Set(ctx, token, claims, s.cfg.VerifyCacheTTL)
	return claims, nil
}

func (s *AuthService) RevokeAll(ctx context.Context, userID int64) error {
	if err := s.DB.RevokeAllTokens(ctx, userID); err != nil {
		return fmt.Errorf("revoke all tokens of user %d: %w", userID, err)
	}
	s.Log.LogAuth("revoke_all", userID, true)
	return nil
}

// CleanExpired removes expired and revoked refresh tokens; run
// periodically from main.
func (s *AuthService) CleanExpired(ctx context.Context) (int64, error) {
	removed, err := s.DB.DeleteExpiredTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("clean expired tokens: %w", err)
	}
	if removed > 0 {
		s.Log.Info("AUTH", fmt.Sprintf("removed %d expired refresh tokens", removed))
	}
	return removed, nil
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *AuthService) ComparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
}

func (s *AuthService) generateRefreshToken(user *models.User) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.cfg.RefreshTTL)
	claims := Claims{
		UserID:    user.ID,
		TokenType: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        fmt.Sprintf("%d-%d", user.ID, now.UnixNano()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	return token, expiresAt, err
}

func (s *AuthService) parseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
