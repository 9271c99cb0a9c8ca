package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("cache: key not found")

//go:generate mockgen -source=$GOFILE -destination=../mocks/mock_$GOPACKAGE/mock_$GOFILE -package=mock_$GOPACKAGE

// Cache is the narrow interface to the shared distributed cache. Every
// implementation must tolerate the backing store being unavailable by
// returning an error rather than panicking; callers decide how to degrade.
type Cache interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key for ttl. A non-positive ttl is invalid:
	// revocation and idempotency entries must never outlive the thing they
	// represent.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores value only if key is absent. Returns true when the key
	// was claimed by this call.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteByPattern removes every key matching pattern ('*' wildcards)
	// and returns how many were deleted.
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}
