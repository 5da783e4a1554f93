// Package cache stores raw API page bodies between runs. The remote
// repository is a re-fetchable snapshot, so caching is opt-in and only
// shortens repeated runs.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for page caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// PageKey derives a cache key from a page URL and the API identity used
// to fetch it. Different identities may see different private items.
func PageKey(pageURL, identity string) string {
	hash := sha256.Sum256([]byte(identity + "\x00" + pageURL))
	return "iwacpipe:page:v1:" + hex.EncodeToString(hash[:])
}
