package services

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"
	"go.pilab.hu/authgate/cache"
	"go.pilab.hu/authgate/internal/metrics"
)

// Cache key prefixes shared by the revocation store and the token service.
const (
	revokedTokenKeyPrefix = "revoked:token:"
	revokedUserKeyPrefix  = "revoked:user:"
	sessionKeyPrefix      = "session:"
)

// RevocationStore tracks tokens (and whole users) that must be rejected even
// though their signature and expiry are still valid. The distributed cache is
// the primary store; every write also lands in an in-process set so that a
// revocation issued by this process stays effective even if the cache becomes
// unreachable right after. The store is owned by the TokenService instance
// that constructed it — there is no package-level state.
type RevocationStore struct {
	distributed cache.Cache

	localTokens *ttlcache.Cache[string, struct{}]
	localUsers  *ttlcache.Cache[string, struct{}]
}

// NewRevocationStore creates a RevocationStore backed by the given
// distributed cache.
func NewRevocationStore(distributed cache.Cache) *RevocationStore {
	localTokens := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	localUsers := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)

	// Start the cleanup processes; entries expire with their tokens.
	go localTokens.Start()
	go localUsers.Start()

	return &RevocationStore{
		distributed: distributed,
		localTokens: localTokens,
		localUsers:  localUsers,
	}
}

// Revoke marks a single token id as revoked for ttl, which callers derive
// from the token's own remaining lifetime — an entry must never outlive the
// token it blocks. The in-process entry cannot fail; the distributed mirror
// is best-effort.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) {
	if tokenID == "" || ttl <= 0 {
		// Already expired: natural expiry has done the job.
		return
	}

	s.localTokens.Set(tokenID, struct{}{}, ttl)

	if err := s.distributed.Set(ctx, revokedTokenKeyPrefix+tokenID, "1", ttl); err != nil {
		log.Warn().Err(err).Str("token_id", tokenID).
			Msg("failed to mirror token revocation to distributed cache")
	}
}

// RevokeAllForUser rejects every outstanding token for userID by writing a
// user-wide marker, and clears the user's refresh-session entries. ttl is the
// longest outstanding token lifetime (the refresh TTL). If the distributed
// cache is unavailable, other processes keep honoring the user's tokens until
// natural expiry — a known limitation of cache-based propagation; only the
// local process is protected by its in-process set.
func (s *RevocationStore) RevokeAllForUser(ctx context.Context, userID string, ttl time.Duration) {
	if userID == "" || ttl <= 0 {
		return
	}

	s.localUsers.Set(userID, struct{}{}, ttl)

	if err := s.distributed.Set(ctx, revokedUserKeyPrefix+userID, "1", ttl); err != nil {
		log.Warn().Err(err).Str("user_id", userID).
			Msg("failed to write user revocation marker to distributed cache")
	}

	if _, err := s.distributed.DeleteByPattern(ctx, sessionKeyPrefix+userID+":*"); err != nil {
		log.Warn().Err(err).Str("user_id", userID).
			Msg("failed to clear refresh sessions from distributed cache")
	}
}

// IsRevoked reports whether tokenID (or its owning user as a whole) has been
// revoked. A cache fault degrades to the in-process sets instead of failing
// the request: availability is prioritized over perfect revocation
// propagation. The result is always a definitive boolean.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID, userID string) bool {
	// The local sets are a superset of what this process mirrored to the
	// cache, so they are consulted unconditionally.
	if item := s.localTokens.Get(tokenID); item != nil {
		return true
	}
	if userID != "" {
		if item := s.localUsers.Get(userID); item != nil {
			return true
		}
	}

	revoked, err := s.distributed.Exists(ctx, revokedTokenKeyPrefix+tokenID)
	if err != nil {
		log.Warn().Err(err).Str("token_id", tokenID).
			Msg("distributed cache unavailable for revocation check, using in-process fallback")
		metrics.RevocationFallbackTotal.Inc()
		return false
	}
	if revoked {
		return true
	}

	if userID != "" {
		revoked, err = s.distributed.Exists(ctx, revokedUserKeyPrefix+userID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).
				Msg("distributed cache unavailable for user revocation check, using in-process fallback")
			metrics.RevocationFallbackTotal.Inc()
			return false
		}
		if revoked {
			return true
		}
	}

	return false
}

// Close stops the in-process cleanup goroutines.
func (s *RevocationStore) Close() {
	s.localTokens.Stop()
	s.localUsers.Stop()
}
