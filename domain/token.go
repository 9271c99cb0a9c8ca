package domain

import "time"

// TokenType discriminates access tokens from refresh tokens. A token of one
// type must never be accepted where the other is required.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TokenClaims is the decoded payload of a signed bearer token. It is
// ephemeral: nothing here is persisted beyond the signed artifact itself.
type TokenClaims struct {
	TokenID       string        `json:"token_id"`
	SubjectID     string        `json:"subject_id"`
	Email         string        `json:"email"`
	Role          string        `json:"role"`
	AccountStatus AccountStatus `json:"account_status"`
	TokenType     TokenType     `json:"token_type"`
	IssuedAt      time.Time     `json:"issued_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
	Issuer        string        `json:"issuer"`
	Audience      string        `json:"audience"`
}

// RemainingLifetime returns how long the token stays valid from now.
// Zero or negative means the token has already expired.
func (c *TokenClaims) RemainingLifetime(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

// TokenPair is the result of issuance: a correlated access/refresh pair.
// The two artifacts share a jti prefix so operational tooling can associate
// them, but each is independently revocable.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
