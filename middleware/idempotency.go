package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"go.pilab.hu/authgate/cache"
	serrors "go.pilab.hu/authgate/errors"
	"go.pilab.hu/authgate/internal/metrics"
)

// HeaderIdempotencyKey carries the client-supplied idempotency key.
const HeaderIdempotencyKey = "X-Idempotency-Key"

const (
	idempotencyKeyPrefix  = "idempotency:"
	defaultIdempotencyTTL = 24 * time.Hour
	finalizeTimeout       = 5 * time.Second
)

// Keys must be 16-128 characters of letters, digits and hyphens. A malformed
// key fails the request instead of silently bypassing deduplication.
var idempotencyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9-]{16,128}$`)

// IdempotencyConfig configures the Idempotent middleware.
type IdempotencyConfig struct {
	// ServiceName is part of every cache key, so the same client key reused
	// against another service never collides.
	ServiceName string
	Cache       cache.Cache
	// TTL bounds how long a terminal response is replayed. Zero means 24h.
	TTL time.Duration
	// Methods defaults to the mutating verbs POST, PUT, PATCH and DELETE.
	Methods []string
	// ExcludedRoutes are literal path prefixes, or parameterized patterns
	// like "/admin/users/:id/reset" where a ":param" segment matches any
	// single path component.
	ExcludedRoutes []string
}

// idempotencyRecord is the cache value: first an in-progress marker claimed
// atomically before the handler runs, then the terminal outcome.
type idempotencyRecord struct {
	InProgress bool      `json:"in_progress,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	CachedAt   time.Time `json:"cached_at"`
}

// replayAcknowledgment is the fixed shape returned on a replay. The original
// response body is deliberately not stored or replayed: clients must treat
// this acknowledgment as the contract.
type replayAcknowledgment struct {
	Cached         bool      `json:"cached"`
	OriginalStatus int       `json:"original_status"`
	CachedAt       time.Time `json:"cached_at"`
}

// Idempotent ensures that a mutating request carrying an idempotency key
// executes its handler at most once per key within the TTL. The key is
// claimed with an atomic set-if-not-exists before the handler runs, so two
// concurrent duplicates cannot both execute; the loser of the race gets 409
// while the original is still in flight and the acknowledgment afterwards.
func Idempotent(cfg IdempotencyConfig) echo.MiddlewareFunc {
	methods := map[string]struct{}{}
	if len(cfg.Methods) == 0 {
		cfg.Methods = []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
	}
	for _, m := range cfg.Methods {
		methods[strings.ToUpper(m)] = struct{}{}
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}

	prefixes, patterns := compileRouteExclusions(cfg.ExcludedRoutes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			if _, ok := methods[req.Method]; !ok {
				return next(c)
			}
			if excluded(req.URL.Path, prefixes, patterns) {
				return next(c)
			}

			key := req.Header.Get(HeaderIdempotencyKey)
			if key == "" {
				return next(c)
			}
			if !idempotencyKeyPattern.MatchString(key) {
				return c.JSON(http.StatusBadRequest,
					serrors.NewInvalidRequest("idempotency key must be 16-128 characters of letters, digits and hyphens"))
			}

			cacheKey := buildCacheKey(cfg.ServiceName, req.Method, req.URL.Path, callerID(c), key)

			marker, _ := json.Marshal(idempotencyRecord{InProgress: true, CachedAt: time.Now().UTC()})
			claimed, err := cfg.Cache.SetNX(req.Context(), cacheKey, string(marker), ttl)
			if err != nil {
				// Availability over deduplication: with the cache down the
				// request proceeds as if no key had been supplied.
				log.Warn().Err(err).Msg("idempotency cache unavailable, request proceeds without deduplication")
				return next(c)
			}

			if !claimed {
				return replay(c, cfg.Cache, cacheKey, next)
			}

			err = next(c)
			finalizeClaimAsync(cfg.Cache, cacheKey, responseStatus(c, err), ttl)
			return err
		}
	}
}

// replay answers a duplicate request from the cached record.
func replay(c echo.Context, store cache.Cache, cacheKey string, next echo.HandlerFunc) error {
	raw, err := store.Get(c.Request().Context(), cacheKey)
	if err != nil {
		// The claim existed a moment ago; losing it here means the cache is
		// flapping. Let the request through rather than failing it.
		log.Warn().Err(err).Msg("idempotency record disappeared, request proceeds")
		return next(c)
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		log.Warn().Err(err).Msg("corrupt idempotency record, request proceeds")
		return next(c)
	}

	if record.InProgress {
		metrics.IdempotencyConflictsTotal.Inc()
		return c.JSON(http.StatusConflict,
			serrors.NewRequestInFlight("a request with this idempotency key is still being processed"))
	}

	metrics.IdempotencyReplaysTotal.Inc()
	return c.JSON(http.StatusOK, replayAcknowledgment{
		Cached:         true,
		OriginalStatus: record.StatusCode,
		CachedAt:       record.CachedAt,
	})
}

// finalizeClaimAsync settles the claim after the response: terminal statuses
// (anything below 500, success and client errors alike) are cached for
// replay; 5xx releases the claim so a retry can execute after a transient
// server fault. Runs detached — a cache write must never block or fail the
// response path, and a caller disconnect must not abort it.
func finalizeClaimAsync(store cache.Cache, cacheKey string, status int, ttl time.Duration) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
		defer cancel()

		if status >= http.StatusOK && status < http.StatusInternalServerError {
			record, err := json.Marshal(idempotencyRecord{StatusCode: status, CachedAt: time.Now().UTC()})
			if err == nil {
				err = store.Set(ctx, cacheKey, string(record), ttl)
			}
			if err != nil {
				log.Warn().Err(err).Msg("failed to cache idempotent response")
			}
			return
		}

		if err := store.Delete(ctx, cacheKey); err != nil {
			log.Warn().Err(err).Msg("failed to release idempotency claim after server error")
		}
	}()
}

// buildCacheKey hashes the composite descriptor so the same client key can
// never collide across services, endpoints or callers.
func buildCacheKey(service, method, path, caller, key string) string {
	composite := strings.Join([]string{service, method, path, caller, key}, "|")
	return idempotencyKeyPrefix + cache.HashKey(composite)
}

func callerID(c echo.Context) string {
	if identity, ok := IdentityFromEchoContext(c); ok {
		return identity.SubjectID
	}
	return ""
}

func responseStatus(c echo.Context, err error) int {
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr.Code
		}
		return http.StatusInternalServerError
	}
	return c.Response().Status
}

// compileRouteExclusions splits the configured routes into literal prefixes
// and parameterized patterns. Patterns containing ":param" segments compile
// to regexps where each such segment matches exactly one path component, so
// a parameterized administrative action can be excluded without excluding
// its whole subtree.
func compileRouteExclusions(routes []string) ([]string, []*regexp.Regexp) {
	var prefixes []string
	var patterns []*regexp.Regexp

	for _, route := range routes {
		if route == "" {
			continue
		}
		if !strings.Contains(route, ":") {
			prefixes = append(prefixes, route)
			continue
		}

		var b strings.Builder
		b.WriteString("^")
		for i, segment := range strings.Split(route, "/") {
			if i > 0 {
				b.WriteString("/")
			}
			if strings.HasPrefix(segment, ":") {
				b.WriteString("[^/]+")
			} else {
				b.WriteString(regexp.QuoteMeta(segment))
			}
		}
		b.WriteString("$")

		re, err := regexp.Compile(b.String())
		if err != nil {
			log.Warn().Err(err).Str("route", route).Msg("skipping invalid idempotency route exclusion")
			continue
		}
		patterns = append(patterns, re)
	}

	return prefixes, patterns
}

func excluded(path string, prefixes []string, patterns []*regexp.Regexp) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, re := range patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
