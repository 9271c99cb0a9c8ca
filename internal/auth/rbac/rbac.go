package rbac

import (
	"strings"

	"go.pilab.hu/authgate/domain"
)

// Permission strings have the shape "resource:action" or
// "resource:action:own". The ":own" suffix narrows a grant to resources the
// caller owns; this package only proves the role's class of access — the
// business handler still has to compare the subject id against the resource
// owner, because ownership is instance data this layer cannot see.

// PermissionAll is the universal wildcard. Only administrative roles carry it.
const PermissionAll = "*:*"

// User management
const (
	PermUsersRead     = "users:read"
	PermUsersReadOwn  = "users:read:own"
	PermUsersWrite    = "users:write"
	PermUsersWriteOwn = "users:write:own"
	PermUsersDelete   = "users:delete"
)

// Session management
const (
	PermSessionsAll      = "sessions:*"
	PermSessionsRead     = "sessions:read"
	PermSessionsReadOwn  = "sessions:read:own"
	PermSessionsClear    = "sessions:clear"
	PermSessionsClearOwn = "sessions:clear:own"
)

// Token lifecycle (admin tooling)
const (
	PermTokensIssue  = "tokens:issue"
	PermTokensRevoke = "tokens:revoke"
)

// Administration
const (
	PermAdminDashboard = "admin:dashboard"
)

// PermissionSet is a static set of permission strings.
type PermissionSet map[string]struct{}

func newPermissionSet(perms ...string) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Contains reports whether the exact permission string is in the set.
func (s PermissionSet) Contains(perm string) bool {
	_, ok := s[perm]
	return ok
}

// RoleToPermissions maps each role to its granted permissions. Loaded at
// process start, never mutated at runtime.
var RoleToPermissions = map[string]PermissionSet{
	domain.RoleCustomer: newPermissionSet(
		PermUsersReadOwn,
		PermUsersWriteOwn,
		PermSessionsReadOwn,
		PermSessionsClearOwn,
	),
	domain.RoleStaff: newPermissionSet(
		PermUsersRead,
		PermUsersReadOwn,
		PermUsersWriteOwn,
		PermSessionsAll,
		PermAdminDashboard,
	),
	domain.RoleAdmin: newPermissionSet(
		PermissionAll,
	),
}

// HasPermission checks whether role grants the required permission. The
// check passes on an exact match, on a resource-level wildcard
// ("resource:*"), or — for the administrative role only — on the universal
// wildcard.
func HasPermission(role, required string) bool {
	set, ok := RoleToPermissions[role]
	if !ok {
		return false
	}
	if set.Contains(required) {
		return true
	}
	if resource, _, ok := strings.Cut(required, ":"); ok && set.Contains(resource+":*") {
		return true
	}
	if role == domain.RoleAdmin && set.Contains(PermissionAll) {
		return true
	}
	return false
}

// HasAllPermissions evaluates an all-of list of required permissions.
func HasAllPermissions(role string, required ...string) bool {
	for _, perm := range required {
		if !HasPermission(role, perm) {
			return false
		}
	}
	return true
}
