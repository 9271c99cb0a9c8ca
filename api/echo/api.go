package echo

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"go.pilab.hu/authgate/domain"
	serrors "go.pilab.hu/authgate/errors"
	"go.pilab.hu/authgate/internal/auth/rbac"
	"go.pilab.hu/authgate/middleware"
	"go.pilab.hu/authgate/services"
)

// AuthAPI exposes the token lifecycle over HTTP.
type AuthAPI struct {
	tokens   *services.TokenService
	subjects domain.SubjectProvider
}

// NewAuthAPI initializes the auth API.
func NewAuthAPI(tokens *services.TokenService, subjects domain.SubjectProvider) *AuthAPI {
	return &AuthAPI{
		tokens:   tokens,
		subjects: subjects,
	}
}

// RegisterRoutes registers the auth routes. Issuance is reachable only for
// internal callers (or admins); refresh is unauthenticated by nature — the
// refresh token itself is the credential.
func (a *AuthAPI) RegisterRoutes(e *echo.Echo, authCfg middleware.AuthConfig, idemCfg middleware.IdempotencyConfig) {
	e.POST("/auth/refresh", a.RefreshHandler, middleware.Idempotent(idemCfg))

	g := e.Group("/auth", middleware.Authenticate(authCfg), middleware.Idempotent(idemCfg))
	g.POST("/token", a.IssueHandler, middleware.RequirePermissions(rbac.PermTokensIssue))
	g.POST("/logout", a.LogoutHandler)
	g.POST("/revoke", a.RevokeHandler, middleware.RequirePermissions(rbac.PermTokensRevoke))
	g.POST("/users/:userId/revoke-all", a.RevokeAllHandler,
		middleware.RequirePermissions(rbac.PermSessionsClearOwn), middleware.RequireOwnership("userId"))
	g.GET("/users/:userId/sessions", a.SessionsHandler,
		middleware.RequirePermissions(rbac.PermSessionsReadOwn), middleware.RequireOwnership("userId"))
}

type issueRequest struct {
	SubjectID string `json:"subject_id"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// IssueHandler issues an access/refresh pair for a subject. Internal
// services call this after authenticating the subject by their own means.
func (a *AuthAPI) IssueHandler(c echo.Context) error {
	var req issueRequest
	if err := c.Bind(&req); err != nil || req.SubjectID == "" {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("subject_id is required"))
	}

	ctx := c.Request().Context()
	subject, err := a.subjects.GetSubjectByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, serrors.ErrSubjectNotFound) {
			return c.JSON(http.StatusNotFound, serrors.NewInvalidRequest("unknown subject"))
		}
		log.Error().Err(err).Msg("Failed to load subject for token issuance")
		return c.JSON(http.StatusInternalServerError, serrors.NewServerError("failed to load subject"))
	}

	pair, err := a.tokens.GenerateTokens(ctx, subject)
	if err != nil {
		if errors.Is(err, serrors.ErrInactiveAccount) {
			return c.JSON(http.StatusForbidden, serrors.NewPermissionDenied("account is not active"))
		}
		log.Error().Err(err).Msg("Failed to issue token pair")
		return c.JSON(http.StatusInternalServerError, serrors.NewServerError("failed to issue tokens"))
	}

	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(time.Until(pair.AccessExpiresAt).Seconds()),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshHandler rotates a new access token from a valid refresh token.
func (a *AuthAPI) RefreshHandler(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("refresh_token is required"))
	}

	accessToken, claims, err := a.tokens.RefreshAccessToken(c.Request().Context(), req.RefreshToken)
	if err != nil {
		if serrors.IsUnauthenticated(err) ||
			errors.Is(err, serrors.ErrInactiveAccount) ||
			errors.Is(err, serrors.ErrSubjectNotFound) {
			return c.JSON(http.StatusUnauthorized, serrors.NewUnauthenticated(err.Error()))
		}
		log.Error().Err(err).Msg("Failed to refresh access token")
		return c.JSON(http.StatusInternalServerError, serrors.NewServerError("failed to refresh token"))
	}

	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(claims.ExpiresAt.Sub(claims.IssuedAt).Seconds()),
	})
}

// LogoutHandler revokes the caller's own bearer token.
func (a *AuthAPI) LogoutHandler(c echo.Context) error {
	raw := bearerToken(c)
	if raw == "" {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("no bearer token to revoke"))
	}

	if err := a.tokens.RevokeToken(c.Request().Context(), raw); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("token is malformed"))
	}
	return c.JSON(http.StatusOK, map[string]bool{"revoked": true})
}

type revokeRequest struct {
	Token string `json:"token"`
}

// RevokeHandler revokes an arbitrary token, for administrative tooling.
func (a *AuthAPI) RevokeHandler(c echo.Context) error {
	var req revokeRequest
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("token is required"))
	}

	if err := a.tokens.RevokeToken(c.Request().Context(), req.Token); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("token is malformed"))
	}
	return c.JSON(http.StatusOK, map[string]bool{"revoked": true})
}

// RevokeAllHandler rejects every outstanding token for a user.
func (a *AuthAPI) RevokeAllHandler(c echo.Context) error {
	userID := c.Param("userId")
	if err := a.tokens.RevokeAllUserTokens(c.Request().Context(), userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to revoke user tokens")
		return c.JSON(http.StatusInternalServerError, serrors.NewServerError("failed to revoke user tokens"))
	}
	return c.JSON(http.StatusOK, map[string]string{"revoked_for": userID})
}

// SessionsHandler lists a user's refresh sessions.
func (a *AuthAPI) SessionsHandler(c echo.Context) error {
	userID := c.Param("userId")
	sessions, err := a.tokens.ListUserSessions(c.Request().Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list user sessions")
		return c.JSON(http.StatusInternalServerError, serrors.NewServerError("failed to list sessions"))
	}
	return c.JSON(http.StatusOK, sessions)
}

func bearerToken(c echo.Context) string {
	parts := strings.SplitN(c.Request().Header.Get(echo.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
