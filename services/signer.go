package services

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrSecretTooShort       = errors.New("symmetric secret must be at least 32 bytes")
	ErrMissingKeyMaterial   = errors.New("missing key material for selected algorithm")
)

// minSymmetricSecretLen is the minimum byte length accepted for HMAC secrets.
const minSymmetricSecretLen = 32

// TokenSigner resolves which key/algorithm pair signs and verifies tokens.
// Construction validates the key material up front: a misconfigured signer
// must prevent the process from serving traffic at all, not fail per-request.
type TokenSigner struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
}

// NewTokenSigner creates a TokenSigner for the given algorithm. Symmetric
// algorithms (HS*) take the shared secret; asymmetric ones (RS*/ES*) take a
// PEM-encoded private key and optionally a separate public key PEM (the
// private key's own public half is used when none is given).
func NewTokenSigner(algorithm, secret, privateKeyPEM, publicKeyPEM string) (*TokenSigner, error) {
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}

	switch method.(type) {
	case *jwt.SigningMethodHMAC:
		if len(secret) < minSymmetricSecretLen {
			return nil, ErrSecretTooShort
		}
		return &TokenSigner{
			method:    method,
			signKey:   []byte(secret),
			verifyKey: []byte(secret),
		}, nil

	case *jwt.SigningMethodRSA:
		if privateKeyPEM == "" {
			return nil, fmt.Errorf("%w: RSA private key required for %s", ErrMissingKeyMaterial, algorithm)
		}
		privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
		}
		verifyKey := any(&privateKey.PublicKey)
		if publicKeyPEM != "" {
			publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
			if err != nil {
				return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
			}
			verifyKey = publicKey
		}
		return &TokenSigner{
			method:    method,
			signKey:   privateKey,
			verifyKey: verifyKey,
		}, nil

	case *jwt.SigningMethodECDSA:
		if privateKeyPEM == "" {
			return nil, fmt.Errorf("%w: EC private key required for %s", ErrMissingKeyMaterial, algorithm)
		}
		privateKey, err := jwt.ParseECPrivateKeyFromPEM([]byte(privateKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("failed to parse EC private key: %w", err)
		}
		verifyKey := any(&privateKey.PublicKey)
		if publicKeyPEM != "" {
			publicKey, err := jwt.ParseECPublicKeyFromPEM([]byte(publicKeyPEM))
			if err != nil {
				return nil, fmt.Errorf("failed to parse EC public key: %w", err)
			}
			verifyKey = publicKey
		}
		return &TokenSigner{
			method:    method,
			signKey:   privateKey,
			verifyKey: verifyKey,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}

// Sign signs the claims and returns the complete encoded token string.
func (s *TokenSigner) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(s.method, claims)

	tokenString, err := token.SignedString(s.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Keyfunc supplies the verification key to the JWT parser and rejects tokens
// signed with a different method than configured.
func (s *TokenSigner) Keyfunc(token *jwt.Token) (any, error) {
	if token.Method.Alg() != s.method.Alg() {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.verifyKey, nil
}

// Method returns the configured signing method.
func (s *TokenSigner) Method() jwt.SigningMethod {
	return s.method
}
