package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKey returns a hex-encoded SHA-256 digest of s. Used to keep composite
// cache keys at a fixed length regardless of path or header sizes.
func HashKey(s string) string {
	hasher := sha256.New()
	hasher.Write([]byte(s))
	return hex.EncodeToString(hasher.Sum(nil))
}
