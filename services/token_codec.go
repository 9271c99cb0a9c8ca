package services

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"go.pilab.hu/authgate/domain"
	serrors "go.pilab.hu/authgate/errors"
)

// signedClaims is the wire shape of the JWT payload.
type signedClaims struct {
	Email         string `json:"email,omitempty"`
	Role          string `json:"role,omitempty"`
	AccountStatus string `json:"status,omitempty"`
	TokenType     string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenCodec encodes and decodes signed bearer tokens. Verification checks
// signature, issuer, audience, expiry and not-before, and returns a typed
// reason on every failure so callers can treat them uniformly as
// unauthenticated.
type TokenCodec struct {
	signer   *TokenSigner
	issuer   string
	audience string
}

// NewTokenCodec creates a new TokenCodec instance.
func NewTokenCodec(signer *TokenSigner, issuer, audience string) *TokenCodec {
	return &TokenCodec{
		signer:   signer,
		issuer:   issuer,
		audience: audience,
	}
}

// Issue builds the JWT payload for claims and signs it.
func (c *TokenCodec) Issue(claims *domain.TokenClaims) (string, error) {
	return c.signer.Sign(&signedClaims{
		Email:         claims.Email,
		Role:          claims.Role,
		AccountStatus: string(claims.AccountStatus),
		TokenType:     string(claims.TokenType),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   claims.SubjectID,
			Audience:  jwt.ClaimStrings{c.audience},
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			NotBefore: jwt.NewNumericDate(claims.IssuedAt),
			ID:        claims.TokenID,
		},
	})
}

// Verify checks the token's signature and standard claims, then — when
// expectedType is non-empty — that the payload's token type matches it.
func (c *TokenCodec) Verify(raw string, expectedType domain.TokenType) (*domain.TokenClaims, error) {
	parsed := &signedClaims{}
	_, err := jwt.ParseWithClaims(raw, parsed, c.signer.Keyfunc,
		jwt.WithValidMethods([]string{c.signer.Method().Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}

	claims := fromSignedClaims(parsed)
	if expectedType != "" && claims.TokenType != expectedType {
		return nil, serrors.ErrTokenWrongType
	}
	return claims, nil
}

// DecodeUnverified decodes the payload WITHOUT checking the signature. It
// exists for introspection only — extracting a token id for a revocation
// lookup, or logging — and must never drive an authorization decision.
func (c *TokenCodec) DecodeUnverified(raw string) (*domain.TokenClaims, error) {
	parsed := &signedClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, parsed); err != nil {
		return nil, serrors.ErrTokenMalformed
	}
	return fromSignedClaims(parsed), nil
}

func fromSignedClaims(sc *signedClaims) *domain.TokenClaims {
	claims := &domain.TokenClaims{
		TokenID:       sc.ID,
		SubjectID:     sc.Subject,
		Email:         sc.Email,
		Role:          sc.Role,
		AccountStatus: domain.AccountStatus(sc.AccountStatus),
		TokenType:     domain.TokenType(sc.TokenType),
		Issuer:        sc.Issuer,
	}
	if len(sc.Audience) > 0 {
		claims.Audience = sc.Audience[0]
	}
	if sc.IssuedAt != nil {
		claims.IssuedAt = sc.IssuedAt.Time
	}
	if sc.ExpiresAt != nil {
		claims.ExpiresAt = sc.ExpiresAt.Time
	}
	return claims
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return serrors.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return serrors.ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return serrors.ErrTokenSignatureInvalid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience):
		return serrors.ErrTokenSignatureInvalid
	default:
		return serrors.ErrTokenMalformed
	}
}
