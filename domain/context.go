package domain

import "context"

// Identity is the authenticated caller attached to a request after the
// authentication middleware has run.
type Identity struct {
	SubjectID string
	Email     string
	Role      string
	TokenID   string
	// Internal marks identities asserted by a trusted internal service via
	// the shared API key, rather than a verified bearer token.
	Internal bool
}

type identityContextKey struct{}

// IdentityContextKey is the echo context key under which the Identity is
// stored by the authentication middleware.
const IdentityContextKey = "auth_identity"

// ContextWithIdentity returns a context carrying the authenticated identity.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext retrieves the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	return id, ok
}
