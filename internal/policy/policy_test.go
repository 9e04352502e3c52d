package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gatekeeper/internal/errs"
	"gatekeeper/internal/models"
	"gatekeeper/internal/policy"
)

func TestPermissionsForRoles(t *testing.T) {
	admin := policy.PermissionsFor(models.RoleAdmin)
	assert.True(t, admin.Has(policy.TicketsCreate))
	assert.True(t, admin.Has(policy.TicketsReadAll))
	assert.True(t, admin.Has(policy.TicketsDelete))
	assert.True(t, admin.Has(policy.UsersCreate))
	assert.True(t, admin.Has(policy.StatsReadAll))

	vendor := policy.PermissionsFor(models.RoleVendor)
	assert.True(t, vendor.Has(policy.TicketsCreate))
	assert.True(t, vendor.Has(policy.TicketsReadOwn))
	assert.True(t, vendor.Has(policy.TicketsScan))
	assert.True(t, vendor.Has(policy.StatsReadOwn))
	assert.False(t, vendor.Has(policy.TicketsReadAll))
	assert.False(t, vendor.Has(policy.TicketsDelete))
	assert.False(t, vendor.Has(policy.UsersCreate))

	controller := policy.PermissionsFor(models.RoleController)
	assert.True(t, controller.Has(policy.TicketsScan))
	assert.False(t, controller.Has(policy.TicketsCreate))
	assert.False(t, controller.Has(policy.TicketsReadOwn))
	assert.False(t, controller.Has(policy.StatsReadOwn))
}

func TestPermissionsForUnknownRole(t *testing.T) {
	perms := policy.PermissionsFor("superuser")
	assert.Empty(t, perms)
	assert.False(t, perms.Has(policy.TicketsScan))
}

func TestAllow(t *testing.T) {
	vendor := &models.User{ID: 7, Role: models.RoleVendor}

	assert.NoError(t, policy.Allow(vendor, policy.TicketsCreate))

	err := policy.Allow(vendor, policy.UsersCreate)
	assert.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindAuthorization))
}

func TestAllowNilUser(t *testing.T) {
	err := policy.Allow(nil, policy.TicketsScan)
	assert.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindAuthentication))
}

func TestAllowOwn(t *testing.T) {
	admin := &models.User{ID: 1, Role: models.RoleAdmin}
	vendor := &models.User{ID: 7, Role: models.RoleVendor}
	controller := &models.User{ID: 9, Role: models.RoleController}

	// Admin passes regardless of ownership.
	assert.NoError(t, policy.AllowOwn(admin, policy.TicketsReadAll, policy.TicketsReadOwn, 42))

	// Vendor passes only on their own resources.
	assert.NoError(t, policy.AllowOwn(vendor, policy.TicketsReadAll, policy.TicketsReadOwn, 7))
	err := policy.AllowOwn(vendor, policy.TicketsReadAll, policy.TicketsReadOwn, 8)
	assert.True(t, errs.IsKind(err, errs.KindAuthorization))

	// Controller holds neither permission, even for "their" id.
	err = policy.AllowOwn(controller, policy.TicketsReadAll, policy.TicketsReadOwn, 9)
	assert.True(t, errs.IsKind(err, errs.KindAuthorization))
}

func TestSetList(t *testing.T) {
	perms := policy.PermissionsFor(models.RoleController).List()
	assert.Equal(t, []string{"tickets:scan"}, perms)
}
