package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.pilab.hu/authgate/domain"
	serrors "go.pilab.hu/authgate/errors"
)

const (
	testIssuer   = "authgate-test"
	testAudience = "platform-services"
)

func newTestCodec(t *testing.T) *TokenCodec {
	t.Helper()
	signer, err := NewTokenSigner("HS256", testSecret, "", "")
	require.NoError(t, err)
	return NewTokenCodec(signer, testIssuer, testAudience)
}

func testClaims(tokenType domain.TokenType, ttl time.Duration) *domain.TokenClaims {
	now := time.Now()
	return &domain.TokenClaims{
		TokenID:       "pair-1." + string(tokenType),
		SubjectID:     "user-1",
		Email:         "user1@example.com",
		Role:          domain.RoleCustomer,
		AccountStatus: domain.AccountStatusActive,
		TokenType:     tokenType,
		IssuedAt:      now,
		ExpiresAt:     now.Add(ttl),
	}
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	in := testClaims(domain.TokenTypeAccess, time.Hour)

	signed, err := codec.Issue(in)
	require.NoError(t, err)

	out, err := codec.Verify(signed, domain.TokenTypeAccess)
	require.NoError(t, err)

	assert.Equal(t, in.TokenID, out.TokenID)
	assert.Equal(t, in.SubjectID, out.SubjectID)
	assert.Equal(t, in.Email, out.Email)
	assert.Equal(t, in.Role, out.Role)
	assert.Equal(t, domain.TokenTypeAccess, out.TokenType)
	assert.Equal(t, testIssuer, out.Issuer)
	assert.Equal(t, testAudience, out.Audience)
	assert.WithinDuration(t, in.ExpiresAt, out.ExpiresAt, time.Second)
}

func TestTokenCodec_SameClaimsTwiceBothVerify(t *testing.T) {
	codec := newTestCodec(t)
	in := testClaims(domain.TokenTypeAccess, time.Hour)

	first, err := codec.Issue(in)
	require.NoError(t, err)
	second, err := codec.Issue(in)
	require.NoError(t, err)

	for _, signed := range []string{first, second} {
		out, err := codec.Verify(signed, domain.TokenTypeAccess)
		require.NoError(t, err)
		assert.Equal(t, in.SubjectID, out.SubjectID)
	}
}

func TestTokenCodec_WrongType(t *testing.T) {
	codec := newTestCodec(t)

	access, err := codec.Issue(testClaims(domain.TokenTypeAccess, time.Hour))
	require.NoError(t, err)
	refresh, err := codec.Issue(testClaims(domain.TokenTypeRefresh, time.Hour))
	require.NoError(t, err)

	_, err = codec.Verify(access, domain.TokenTypeRefresh)
	assert.ErrorIs(t, err, serrors.ErrTokenWrongType)

	_, err = codec.Verify(refresh, domain.TokenTypeAccess)
	assert.ErrorIs(t, err, serrors.ErrTokenWrongType)
}

func TestTokenCodec_Expired(t *testing.T) {
	codec := newTestCodec(t)

	signed, err := codec.Issue(testClaims(domain.TokenTypeAccess, -time.Minute))
	require.NoError(t, err)

	_, err = codec.Verify(signed, domain.TokenTypeAccess)
	assert.ErrorIs(t, err, serrors.ErrTokenExpired)
}

func TestTokenCodec_NotYetValid(t *testing.T) {
	codec := newTestCodec(t)

	claims := testClaims(domain.TokenTypeAccess, 2*time.Hour)
	claims.IssuedAt = time.Now().Add(time.Hour) // nbf is set to iat
	signed, err := codec.Issue(claims)
	require.NoError(t, err)

	_, err = codec.Verify(signed, domain.TokenTypeAccess)
	assert.ErrorIs(t, err, serrors.ErrTokenNotYetValid)
}

func TestTokenCodec_TamperedSignature(t *testing.T) {
	codec := newTestCodec(t)

	signed, err := codec.Issue(testClaims(domain.TokenTypeAccess, time.Hour))
	require.NoError(t, err)

	tampered := signed[:len(signed)-2] + "xx"
	_, err = codec.Verify(tampered, domain.TokenTypeAccess)
	assert.ErrorIs(t, err, serrors.ErrTokenSignatureInvalid)
}

func TestTokenCodec_ForeignIssuerRejected(t *testing.T) {
	signer, err := NewTokenSigner("HS256", testSecret, "", "")
	require.NoError(t, err)
	foreign := NewTokenCodec(signer, "another-issuer", testAudience)
	codec := newTestCodec(t)

	signed, err := foreign.Issue(testClaims(domain.TokenTypeAccess, time.Hour))
	require.NoError(t, err)

	_, err = codec.Verify(signed, domain.TokenTypeAccess)
	assert.ErrorIs(t, err, serrors.ErrTokenSignatureInvalid)
}

func TestTokenCodec_DecodeUnverified(t *testing.T) {
	codec := newTestCodec(t)

	signed, err := codec.Issue(testClaims(domain.TokenTypeRefresh, time.Hour))
	require.NoError(t, err)

	// A bad signature does not matter for introspection.
	tampered := signed[:len(signed)-2] + "xx"
	decoded, err := codec.DecodeUnverified(tampered)
	require.NoError(t, err)
	assert.Equal(t, "user-1", decoded.SubjectID)
	assert.Equal(t, domain.TokenTypeRefresh, decoded.TokenType)

	_, err = codec.DecodeUnverified("not-a-jwt")
	assert.ErrorIs(t, err, serrors.ErrTokenMalformed)
}
