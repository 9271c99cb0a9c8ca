package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	serrors "go.pilab.hu/authgate/errors"
	"go.pilab.hu/authgate/internal/auth/rbac"
)

// RequirePermissions authorizes the authenticated role against an all-of
// list of required permissions. It must run after Authenticate.
func RequirePermissions(required ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := IdentityFromEchoContext(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, serrors.NewUnauthenticated("authentication required"))
			}

			if !rbac.HasAllPermissions(identity.Role, required...) {
				log.Warn().Str("role", identity.Role).Strs("required_permissions", required).
					Str("subject_id", identity.SubjectID).Msg("permission denied")
				return c.JSON(http.StatusForbidden,
					serrors.NewPermissionDenied(fmt.Sprintf("role %q lacks required permissions %v", identity.Role, required)))
			}

			return next(c)
		}
	}
}

// RequireOwnership verifies that the path parameter names the authenticated
// subject itself. Permission checks only prove a role's class of access;
// this is the separate instance-level ownership comparison. Roles holding
// the universal wildcard act on any resource instance.
func RequireOwnership(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := IdentityFromEchoContext(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, serrors.NewUnauthenticated("authentication required"))
			}

			if rbac.HasPermission(identity.Role, rbac.PermissionAll) {
				return next(c)
			}

			owner := c.Param(param)
			if owner == "" || owner != identity.SubjectID {
				return c.JSON(http.StatusForbidden,
					serrors.NewPermissionDenied("resource is not owned by the authenticated subject"))
			}

			return next(c)
		}
	}
}
