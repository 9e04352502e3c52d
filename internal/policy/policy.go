// Package policy is the single place role names are turned into
// capabilities. Callers check set membership; nothing outside this
// package compares role strings inline.
package policy

import (
	"sort"

	"gatekeeper/internal/errs"
	"gatekeeper/internal/models"
)

type Permission string

const (
	TicketsCreate  Permission = "tickets:create"
	TicketsReadAll Permission = "tickets:read:all"
	TicketsReadOwn Permission = "tickets:read:own"
	TicketsUpdate  Permission = "tickets:update"
	TicketsDelete  Permission = "tickets:delete"
	TicketsScan    Permission = "tickets:scan"
	UsersCreate    Permission = "users:create"
	UsersReadAll   Permission = "users:read:all"
	UsersUpdate    Permission = "users:update"
	UsersDelete    Permission = "users:delete"
	StatsReadAll   Permission = "stats:read:all"
	StatsReadOwn   Permission = "stats:read:own"
	OrdersReadAll  Permission = "orders:read:all"
	OrdersReadOwn  Permission = "orders:read:own"
)

type Set map[Permission]struct{}

func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// List returns the permissions sorted, for stable API responses.
func (s Set) List() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}

func newSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

var rolePermissions = map[string]Set{
	models.RoleAdmin: newSet(
		TicketsCreate, TicketsReadAll, TicketsReadOwn, TicketsUpdate,
		TicketsDelete, TicketsScan,
		UsersCreate, UsersReadAll, UsersUpdate, UsersDelete,
		StatsReadAll, StatsReadOwn, OrdersReadAll, OrdersReadOwn,
	),
	models.RoleVendor: newSet(
		TicketsCreate, TicketsReadOwn, TicketsScan,
		StatsReadOwn, OrdersReadOwn,
	),
	models.RoleController: newSet(
		TicketsScan,
	),
}

// PermissionsFor returns the capability set for a role. Unknown roles
// get an empty set.
func PermissionsFor(role string) Set {
	if s, ok := rolePermissions[role]; ok {
		return s
	}
	return Set{}
}

// Allow fails with a Forbidden error unless the user's role grants the
// permission.
func Allow(user *models.User, p Permission) error {
	if user == nil {
		return errs.Authentication("unauthenticated", "authentication required")
	}
	if !PermissionsFor(user.Role).Has(p) {
		return errs.Forbidden("permission " + string(p) + " required")
	}
	return nil
}

// AllowOwn authorizes an operation on a resource owned by ownerID. A
// caller holding the "all" permission passes unconditionally; a caller
// holding only the "own" permission must be the owner.
func AllowOwn(user *models.User, all, own Permission, ownerID int64) error {
	if user == nil {
		return errs.Authentication("unauthenticated", "authentication required")
	}
	perms := PermissionsFor(user.Role)
	if perms.Has(all) {
		return nil
	}
	if perms.Has(own) && user.ID == ownerID {
		return nil
	}
	return errs.Forbidden("access to this resource is not allowed")
}
