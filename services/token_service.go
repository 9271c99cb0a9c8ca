package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.pilab.hu/authgate/cache"
	"go.pilab.hu/authgate/domain"
	serrors "go.pilab.hu/authgate/errors"
	"go.pilab.hu/authgate/internal/metrics"
)

// Access and refresh tokens of one pair share the uuid prefix of their jti;
// the suffix keeps the two independently revocable.
const (
	accessTokenIDSuffix  = ".access"
	refreshTokenIDSuffix = ".refresh"
)

// TokenService orchestrates the token lifecycle: issuance, verification,
// refresh and revocation.
type TokenService struct {
	codec       *TokenCodec
	revocations *RevocationStore
	subjects    domain.SubjectProvider
	sessions    domain.SessionRepository
	distributed cache.Cache

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService creates a new TokenService instance. The revocation store
// is owned by the service and lives as long as the process.
func NewTokenService(
	codec *TokenCodec,
	revocations *RevocationStore,
	subjects domain.SubjectProvider,
	sessions domain.SessionRepository,
	distributed cache.Cache,
	accessTTL, refreshTTL time.Duration,
) *TokenService {
	return &TokenService{
		codec:       codec,
		revocations: revocations,
		subjects:    subjects,
		sessions:    sessions,
		distributed: distributed,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
	}
}

// sessionRecord is the cache shape of a refresh session, keyed by
// "session:{userID}:{tokenID}".
type sessionRecord struct {
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GenerateTokens issues a correlated access/refresh token pair for subject.
// Issuance is refused for accounts that are not active. Persisting the
// refresh-session metadata is best-effort: a store failure is logged, never
// surfaced, because verification does not depend on it.
func (s *TokenService) GenerateTokens(ctx context.Context, subject *domain.Subject) (*domain.TokenPair, error) {
	if !subject.IsActive() {
		return nil, serrors.ErrInactiveAccount
	}

	issuedAt := time.Now()
	pairID := uuid.NewString()

	accessClaims := &domain.TokenClaims{
		TokenID:       pairID + accessTokenIDSuffix,
		SubjectID:     subject.ID,
		Email:         subject.Email,
		Role:          subject.Role,
		AccountStatus: subject.Status,
		TokenType:     domain.TokenTypeAccess,
		IssuedAt:      issuedAt,
		ExpiresAt:     issuedAt.Add(s.accessTTL),
	}
	refreshClaims := &domain.TokenClaims{
		TokenID:       pairID + refreshTokenIDSuffix,
		SubjectID:     subject.ID,
		Email:         subject.Email,
		Role:          subject.Role,
		AccountStatus: subject.Status,
		TokenType:     domain.TokenTypeRefresh,
		IssuedAt:      issuedAt,
		ExpiresAt:     issuedAt.Add(s.refreshTTL),
	}

	accessToken, err := s.codec.Issue(accessClaims)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refreshToken, err := s.codec.Issue(refreshClaims)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	s.storeSession(ctx, &domain.RefreshSession{
		UserID:    subject.ID,
		TokenID:   refreshClaims.TokenID,
		IssuedAt:  issuedAt,
		ExpiresAt: refreshClaims.ExpiresAt,
	})

	metrics.TokensIssuedTotal.Inc()

	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessClaims.ExpiresAt,
		RefreshExpiresAt: refreshClaims.ExpiresAt,
	}, nil
}

// VerifyToken validates a signed token of the expected type. Revocation is
// checked before full signature verification when unverified introspection
// cheaply yields the token id; a token whose signature verifies but is
// missing subject, email or role is rejected as malformed.
func (s *TokenService) VerifyToken(ctx context.Context, raw string, expectedType domain.TokenType) (*domain.TokenClaims, error) {
	introspectedID := ""
	if decoded, err := s.codec.DecodeUnverified(raw); err == nil && decoded.TokenID != "" {
		introspectedID = decoded.TokenID
		if s.revocations.IsRevoked(ctx, decoded.TokenID, decoded.SubjectID) {
			metrics.TokenVerificationFailuresTotal.WithLabelValues("revoked").Inc()
			return nil, serrors.ErrTokenRevoked
		}
	}

	claims, err := s.codec.Verify(raw, expectedType)
	if err != nil {
		metrics.TokenVerificationFailuresTotal.WithLabelValues(verificationFailureReason(err)).Inc()
		return nil, err
	}

	if claims.SubjectID == "" || claims.Email == "" || claims.Role == "" {
		metrics.TokenVerificationFailuresTotal.WithLabelValues("malformed").Inc()
		return nil, serrors.ErrTokenMalformed
	}

	// Introspection can only fail on tokens that also fail verification, but
	// a verified id that differs from the introspected one must still be
	// checked against the revocation store.
	if claims.TokenID != introspectedID && s.revocations.IsRevoked(ctx, claims.TokenID, claims.SubjectID) {
		metrics.TokenVerificationFailuresTotal.WithLabelValues("revoked").Inc()
		return nil, serrors.ErrTokenRevoked
	}

	return claims, nil
}

// RefreshAccessToken rotates a new access token from a valid refresh token.
// The refresh token itself is untouched and keeps its own expiry. The
// subject's account status is re-checked against the identity source so a
// deactivated account cannot keep minting access tokens for the remaining
// life of its refresh token.
func (s *TokenService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, *domain.TokenClaims, error) {
	claims, err := s.VerifyToken(ctx, refreshToken, domain.TokenTypeRefresh)
	if err != nil {
		return "", nil, err
	}

	subject, err := s.subjects.GetSubjectByID(ctx, claims.SubjectID)
	if err != nil {
		log.Warn().Err(err).Str("subject_id", claims.SubjectID).Msg("refresh: subject lookup failed")
		return "", nil, serrors.ErrSubjectNotFound
	}
	if !subject.IsActive() {
		return "", nil, serrors.ErrInactiveAccount
	}

	issuedAt := time.Now()
	accessClaims := &domain.TokenClaims{
		TokenID:       uuid.NewString() + accessTokenIDSuffix,
		SubjectID:     subject.ID,
		Email:         subject.Email,
		Role:          subject.Role,
		AccountStatus: subject.Status,
		TokenType:     domain.TokenTypeAccess,
		IssuedAt:      issuedAt,
		ExpiresAt:     issuedAt.Add(s.accessTTL),
	}

	accessToken, err := s.codec.Issue(accessClaims)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	metrics.TokensRefreshedTotal.Inc()
	return accessToken, accessClaims, nil
}

// RevokeToken blacklists a single token for its remaining lifetime. The
// token does not have to verify — a tampered token is rejected as malformed,
// but an expired one is a no-op, not an error.
func (s *TokenService) RevokeToken(ctx context.Context, raw string) error {
	decoded, err := s.codec.DecodeUnverified(raw)
	if err != nil {
		return err
	}

	s.revocations.Revoke(ctx, decoded.TokenID, decoded.RemainingLifetime(time.Now()))
	metrics.TokensRevokedTotal.Inc()

	if decoded.TokenType == domain.TokenTypeRefresh {
		s.dropSession(ctx, decoded.SubjectID, decoded.TokenID)
	}
	return nil
}

// RevokeAllUserTokens rejects every outstanding token for userID. The
// user-wide marker lives for the refresh TTL, the longest lifetime any
// outstanding token can still have.
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID string) error {
	s.revocations.RevokeAllForUser(ctx, userID, s.refreshTTL)
	metrics.TokensRevokedTotal.Inc()

	if s.sessions != nil {
		if _, err := s.sessions.DeleteSessionsByUserID(ctx, userID); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("failed to delete persisted refresh sessions")
		}
	}
	return nil
}

// ListUserSessions returns the persisted refresh sessions for a user.
func (s *TokenService) ListUserSessions(ctx context.Context, userID string) ([]*domain.RefreshSession, error) {
	if s.sessions == nil {
		return nil, nil
	}
	return s.sessions.ListSessionsByUserID(ctx, userID)
}

// Close releases the revocation store's in-process resources.
func (s *TokenService) Close() {
	s.revocations.Close()
}

func (s *TokenService) storeSession(ctx context.Context, session *domain.RefreshSession) {
	record, err := json.Marshal(sessionRecord{
		IssuedAt:  session.IssuedAt,
		ExpiresAt: session.ExpiresAt,
	})
	if err == nil {
		key := sessionKeyPrefix + session.UserID + ":" + session.TokenID
		if err := s.distributed.Set(ctx, key, string(record), time.Until(session.ExpiresAt)); err != nil {
			log.Warn().Err(err).Str("user_id", session.UserID).Msg("failed to cache refresh session")
		}
	}

	if s.sessions != nil {
		if err := s.sessions.StoreSession(ctx, session); err != nil {
			log.Warn().Err(err).Str("user_id", session.UserID).Msg("failed to persist refresh session")
		}
	}
}

func (s *TokenService) dropSession(ctx context.Context, userID, tokenID string) {
	if err := s.distributed.Delete(ctx, sessionKeyPrefix+userID+":"+tokenID); err != nil {
		log.Warn().Err(err).Str("token_id", tokenID).Msg("failed to drop cached refresh session")
	}
	if s.sessions != nil {
		if err := s.sessions.DeleteSessionByTokenID(ctx, tokenID); err != nil {
			log.Warn().Err(err).Str("token_id", tokenID).Msg("failed to drop persisted refresh session")
		}
	}
}

func verificationFailureReason(err error) string {
	switch err {
	case serrors.ErrTokenExpired:
		return "expired"
	case serrors.ErrTokenNotYetValid:
		return "not_yet_valid"
	case serrors.ErrTokenWrongType:
		return "wrong_type"
	case serrors.ErrTokenSignatureInvalid:
		return "signature_invalid"
	case serrors.ErrTokenRevoked:
		return "revoked"
	default:
		return "malformed"
	}
}
