package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.pilab.hu/authgate/domain"
)

func TestHasPermission_ExactMatch(t *testing.T) {
	assert.True(t, HasPermission(domain.RoleCustomer, PermUsersReadOwn))
	assert.True(t, HasPermission(domain.RoleStaff, PermUsersRead))

	// An exact grant does not leak into other actions on the same resource.
	assert.False(t, HasPermission(domain.RoleCustomer, PermUsersRead))
	assert.False(t, HasPermission(domain.RoleStaff, PermUsersDelete))
}

func TestHasPermission_ResourceWildcard(t *testing.T) {
	// Staff holds "sessions:*", which covers every sessions action,
	// own-scoped ones included.
	assert.True(t, HasPermission(domain.RoleStaff, PermSessionsRead))
	assert.True(t, HasPermission(domain.RoleStaff, PermSessionsClear))
	assert.True(t, HasPermission(domain.RoleStaff, PermSessionsClearOwn))

	// The wildcard is scoped to its resource.
	assert.False(t, HasPermission(domain.RoleStaff, PermTokensRevoke))
}

func TestHasPermission_UniversalWildcard(t *testing.T) {
	assert.True(t, HasPermission(domain.RoleAdmin, PermAdminDashboard))
	assert.True(t, HasPermission(domain.RoleAdmin, PermTokensIssue))
	assert.True(t, HasPermission(domain.RoleAdmin, PermissionAll))

	// Nobody else gets the universal wildcard.
	assert.False(t, HasPermission(domain.RoleStaff, PermissionAll))
	assert.False(t, HasPermission(domain.RoleCustomer, PermissionAll))
}

func TestHasPermission_UnknownRole(t *testing.T) {
	assert.False(t, HasPermission("intern", PermUsersReadOwn))
	assert.False(t, HasPermission("", PermUsersReadOwn))
}

func TestHasAllPermissions(t *testing.T) {
	assert.True(t, HasAllPermissions(domain.RoleCustomer, PermUsersReadOwn, PermSessionsReadOwn))
	assert.False(t, HasAllPermissions(domain.RoleCustomer, PermUsersReadOwn, PermUsersDelete))
	assert.True(t, HasAllPermissions(domain.RoleAdmin))
}
