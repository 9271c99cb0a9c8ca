package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.pilab.hu/authgate/domain"
	"go.pilab.hu/authgate/internal/auth/rbac"
)

func authzContext(t *testing.T, identity *domain.Identity) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/users/user-1/sessions", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if identity != nil {
		c.Set(domain.IdentityContextKey, identity)
	}
	return c, rec
}

func TestRequirePermissions_Granted(t *testing.T) {
	c, rec := authzContext(t, &domain.Identity{SubjectID: "user-1", Role: domain.RoleCustomer})

	handler := RequirePermissions(rbac.PermSessionsReadOwn)(okHandler)
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePermissions_Denied(t *testing.T) {
	c, rec := authzContext(t, &domain.Identity{SubjectID: "user-1", Role: domain.RoleCustomer})

	handler := RequirePermissions(rbac.PermUsersDelete)(okHandler)
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequirePermissions_AllOf(t *testing.T) {
	c, rec := authzContext(t, &domain.Identity{SubjectID: "user-1", Role: domain.RoleStaff})

	// One granted, one not: the all-of list fails.
	handler := RequirePermissions(rbac.PermUsersRead, rbac.PermTokensRevoke)(okHandler)
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequirePermissions_NoIdentity(t *testing.T) {
	c, rec := authzContext(t, nil)

	handler := RequirePermissions(rbac.PermSessionsReadOwn)(okHandler)
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireOwnership(t *testing.T) {
	owner := &domain.Identity{SubjectID: "user-1", Role: domain.RoleCustomer}
	stranger := &domain.Identity{SubjectID: "user-2", Role: domain.RoleCustomer}
	admin := &domain.Identity{SubjectID: "root", Role: domain.RoleAdmin}

	run := func(identity *domain.Identity) int {
		c, rec := authzContext(t, identity)
		c.SetParamNames("userId")
		c.SetParamValues("user-1")

		handler := RequireOwnership("userId")(okHandler)
		require.NoError(t, handler(c))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, run(owner))
	assert.Equal(t, http.StatusForbidden, run(stranger))
	// The universal wildcard acts on any instance.
	assert.Equal(t, http.StatusOK, run(admin))
}

func TestRequireOwnership_MissingParam(t *testing.T) {
	c, rec := authzContext(t, &domain.Identity{SubjectID: "user-1", Role: domain.RoleCustomer})

	handler := RequireOwnership("userId")(okHandler)
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
