package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/errs"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
	"gatekeeper/internal/policy"
)

// UserDBLayer is the identity store.
type UserDBLayer interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error)
	ListUsers(ctx context.Context, opts ListOptions) ([]models.User, int, error)
	UpdateUser(ctx context.Context, user *models.User, columns ...string) error
	SetActive(ctx context.Context, id int64, active bool) error
	DeleteUser(ctx context.Context, id int64) error
	CountTicketsByIssuer(ctx context.Context, userID int64) (int, error)
}

// CredentialHelper is the slice of the credential service user
// management needs: hashing and session revocation. Password mechanics
// stay opaque to this package.
type CredentialHelper interface {
	HashPassword(password string) (string, error)
	ComparePassword(hash, password string) error
	RevokeAll(ctx context.Context, userID int64) error
}

type UserService struct {
	DB          UserDBLayer
	Credentials CredentialHelper
	Audit       *audit.Recorder
	Log         *logger.Logger
}

func NewUserService(db UserDBLayer, creds CredentialHelper, rec *audit.Recorder, log *logger.Logger) *UserService {
	return &UserService{DB: db, Credentials: creds, Audit: rec, Log: log}
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role"`
}

func (s *UserService) Create(ctx context.Context, req CreateUserRequest, caller *models.User) (*models.User, error) {
	if err := policy.Allow(caller, policy.UsersCreate); err != nil {
		return nil, err
	}

	var violations []string
	if len(strings.TrimSpace(req.Username)) < 3 {
		violations = append(violations, "username must be at least 3 characters")
	}
	if len(req.Password) < 8 {
		violations = append(violations, "password must be at least 8 characters")
	}
	if strings.TrimSpace(req.Name) == "" {
		violations = append(violations, "name is required")
	}
	if !models.ValidRole(req.Role) {
		violations = append(violations, fmt.Sprintf("unknown role %q", req.Role))
	}
	if len(violations) > 0 {
		return nil, errs.Validation(violations...)
	}

	taken, err := s.DB.UsernameExists(ctx, req.Username, 0)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, errs.Conflict("username already exists")
	}

	hash, err := s.Credentials.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username: strings.TrimSpace(req.Username),
		Password: hash,
		Name:     strings.TrimSpace(req.Name),
		Phone:    strings.TrimSpace(req.Phone),
		Role:     req.Role,
		IsActive: true,
	}
	if err := s.DB.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.Audit.Record(ctx, audit.Entry{
		UserID:     caller.ID,
		Action:     audit.ActionUserCreate,
		EntityType: "user",
		EntityID:   fmt.Sprintf("%d", user.ID),
		Details:    map[string]interface{}{"username": user.Username, "role": user.Role},
	})
	return user, nil
}

// Get returns one user; admins see anyone, others only themselves.
func (s *UserService) Get(ctx context.Context, id int64, caller *models.User) (*models.User, error) {
	if caller == nil {
		return nil, errs.Authentication("unauthenticated", "authentication required")
	}
	if caller.ID != id {
		if err := policy.Allow(caller, policy.UsersReadAll); err != nil {
			return nil, err
		}
	}
	user, err := s.DB.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("user")
		}
		return nil, fmt.Errorf("fetch user %d: %w", id, err)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, opts ListOptions, caller *models.User) ([]models.User, int, error) {
	if err := policy.Allow(caller, policy.UsersReadAll); err != nil {
		return nil, 0, err
	}
	return s.DB.ListUsers(ctx, opts)
}

type UpdateUserRequest struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Role  *string `json:"role,omitempty"`
}

// Update lets admins change name/phone/role of anyone, and every user
// change their own name/phone. Role changes are admin-only and audited
// separately.
func (s *UserService) Update(ctx context.Context, id int64, req UpdateUserRequest, caller *models.User) (*models.User, error) {
	isSelf := caller != nil && caller.ID == id
	if !isSelf {
		if err := policy.Allow(caller, policy.UsersUpdate); err != nil {
			return nil, err
		}
	}

	user, err := s.DB.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("user")
		}
		return nil, fmt.Errorf("fetch user %d: %w", id, err)
	}

	var columns []string
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		user.Name = strings.TrimSpace(*req.Name)
		columns = append(columns, "name")
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
		columns = append(columns, "phone")
	}

	roleChanged := false
	if req.Role != nil && *req.Role != user.Role {
		if err := policy.Allow(caller, policy.UsersUpdate); err != nil {
			return nil, err
		}
		if !models.ValidRole(*req.Role) {
			return nil, errs.Validation(fmt.Sprintf("unknown role %q", *req.Role))
		}
		user.Role = *req.Role
		columns = append(columns, "role")
		roleChanged = true
	}

	if len(columns) == 0 {
		return user, nil
	}
	if err := s.DB.UpdateUser(ctx, user, columns...); err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}

	action := audit.ActionUserUpdate
	if roleChanged {
		action = audit.ActionRoleChange
	}
	s.Audit.Record(ctx, audit.Entry{
		UserID:     caller.ID,
		Action:     action,
		EntityType: "user",
		EntityID:   fmt.Sprintf("%d", id),
		Details:    map[string]interface{}{"columns": columns},
	})
	return user, nil
}

// ChangePassword requires the current password for self-service; admins
// can reset without it. All refresh tokens are revoked afterwards.
func (s *UserService) ChangePassword(ctx context.Context, id int64, current, newPassword string, caller *models.User) error {
	isSelf := caller != nil && caller.ID == id
	if !isSelf {
		if err := policy.Allow(caller, policy.UsersUpdate); err != nil {
			return err
		}
	}
	if len(newPassword) < 8 {
		return errs.Validation("password must be at least 8 characters")
	}

	user, err := s.DB.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.NotFound("user")
		}
		return fmt.Errorf("fetch user %d: %w", id, err)
	}

	if isSelf {
		if err := s.Credentials.ComparePassword(user.Password, current); err != nil {
			return errs.Authentication("invalid_credentials", "current password is incorrect")
		}
	}

	hash, err := s.Credentials.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.Password = hash
	if err := s.DB.UpdateUser(ctx, user, "password"); err != nil {
		return fmt.Errorf("update password for user %d: %w", id, err)
	}

	if err := s.Credentials.RevokeAll(ctx, id); err != nil {
		s.Log.Error("USERS", fmt.Sprintf("failed to revoke sessions of user %d after password change: %v", id, err))
	}

	s.Audit.Record(ctx, audit.Entry{
		UserID:     caller.ID,
		Action:     audit.ActionPasswordChange,
		EntityType: "user",
		EntityID:   fmt.Sprintf("%d", id),
	})
	return nil
}

// Deactivate is the soft delete: the account stops authenticating but
// its ticket history stays attributable.
func (s *UserService) Deactivate(ctx context.Context, id int64, caller *models.User) error {
	if err := policy.Allow(caller, policy.UsersDelete); err != nil {
		return err
	}
	if _, err := s.DB.GetUserByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.NotFound("user")
		}
		return fmt.Errorf("fetch user %d: %w", id, err)
	}

	if err := s.DB.SetActive(ctx, id, false); err != nil {
		return fmt.Errorf("deactivate user %d: %w", id, err)
	}
	if err := s.Credentials.RevokeAll(ctx, id); err != nil {
		s.Log.Error("USERS", fmt.Sprintf("failed to revoke sessions of deactivated user %d: %v", id, err))
	}

	s.Audit.Record(ctx, audit.Entry{
		UserID:     caller.ID,
		Action:     audit.ActionUserDeactivate,
		EntityType: "user",
		EntityID:   fmt.Sprintf("%d", id),
	})
	return nil
}

// Purge hard-deletes a user. Only allowed when no tickets reference the
// user as issuer; the check is an explicit precondition, not a caught
// constraint violation.
func (s *UserService) Purge(ctx context.Context, id int64, caller *models.User) error {
	if err := policy.Allow(caller, policy.UsersDelete); err != nil {
		return err
	}
	if _, err := s.DB.GetUserByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.NotFound("user")
		}
		return fmt.Errorf("fetch user %d: %w", id, err)
	}

	count, err := s.DB.CountTicketsByIssuer(ctx, id)
	if err != nil {
		return fmt.Errorf("count tickets of user %d: %w", id, err)
	}
	if count > 0 {
		return errs.Conflict(fmt.Sprintf("user has %d issued tickets; deactivate instead", count))
	}

	if err := s.DB.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}

	s.Audit.Record(ctx, audit.Entry{
		UserID:     caller.ID,
		Action:     audit.ActionUserPurge,
		EntityType: "user",
		EntityID:   fmt.Sprintf("%d", id),
	})
	return nil
}
