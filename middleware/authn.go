package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"go.pilab.hu/authgate/domain"
	serrors "go.pilab.hu/authgate/errors"
)

// Headers understood by the authentication middleware. The X-User-* headers
// are only honored on internal service-to-service calls that present the
// shared API key.
const (
	HeaderInternalAPIKey = "X-Internal-Api-Key"
	HeaderServiceName    = "X-Service-Name"
	HeaderUserID         = "X-User-Id"
	HeaderUserEmail      = "X-User-Email"
	HeaderUserRole       = "X-User-Role"
)

// TokenVerifier validates a signed bearer token of the expected type.
// *services.TokenService implements it.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string, expectedType domain.TokenType) (*domain.TokenClaims, error)
}

// AuthConfig configures the Authenticate middleware.
type AuthConfig struct {
	Verifier TokenVerifier
	// InternalAPIKey enables the internal header-based bypass when
	// non-empty. Internal callers present it together with their service
	// name and the X-User-* identity headers.
	InternalAPIKey string
}

// Authenticate extracts and verifies the bearer token on each request and
// attaches the resulting identity to the request context. Every verification
// failure maps to 401; nothing in this path produces a 5xx.
func Authenticate(cfg AuthConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			if apiKey := req.Header.Get(HeaderInternalAPIKey); apiKey != "" {
				return authenticateInternal(c, next, cfg, apiKey)
			}

			authHeader := req.Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, serrors.NewUnauthenticated("missing authorization header"))
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return c.JSON(http.StatusUnauthorized,
					serrors.NewUnauthenticated("invalid authorization header format: expected Bearer token"))
			}

			claims, err := cfg.Verifier.VerifyToken(req.Context(), parts[1], domain.TokenTypeAccess)
			if err != nil {
				if serrors.IsUnauthenticated(err) {
					return c.JSON(http.StatusUnauthorized, serrors.NewUnauthenticated(err.Error()))
				}
				log.Error().Err(err).Msg("unexpected token verification failure")
				return c.JSON(http.StatusUnauthorized, serrors.NewUnauthenticated("invalid token"))
			}

			setIdentity(c, &domain.Identity{
				SubjectID: claims.SubjectID,
				Email:     claims.Email,
				Role:      claims.Role,
				TokenID:   claims.TokenID,
			})
			return next(c)
		}
	}
}

// authenticateInternal handles trusted service-to-service calls that bypass
// bearer-token auth via the shared API key + service name pair.
func authenticateInternal(c echo.Context, next echo.HandlerFunc, cfg AuthConfig, apiKey string) error {
	req := c.Request()
	serviceName := req.Header.Get(HeaderServiceName)

	if cfg.InternalAPIKey == "" || serviceName == "" ||
		subtle.ConstantTimeCompare([]byte(apiKey), []byte(cfg.InternalAPIKey)) != 1 {
		log.Warn().Str("service", serviceName).Msg("rejected internal call with invalid credentials")
		return c.JSON(http.StatusUnauthorized, serrors.NewUnauthenticated("invalid internal service credentials"))
	}

	userID := req.Header.Get(HeaderUserID)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, serrors.NewUnauthenticated("internal call is missing the user identity headers"))
	}

	setIdentity(c, &domain.Identity{
		SubjectID: userID,
		Email:     req.Header.Get(HeaderUserEmail),
		Role:      req.Header.Get(HeaderUserRole),
		Internal:  true,
	})
	return next(c)
}

func setIdentity(c echo.Context, id *domain.Identity) {
	c.Set(domain.IdentityContextKey, id)

	req := c.Request()
	c.SetRequest(req.WithContext(domain.ContextWithIdentity(req.Context(), id)))
}

// IdentityFromEchoContext retrieves the authenticated identity attached by
// Authenticate.
func IdentityFromEchoContext(c echo.Context) (*domain.Identity, bool) {
	id, ok := c.Get(domain.IdentityContextKey).(*domain.Identity)
	return id, ok && id != nil
}
