package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching fetched inputs
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}

// CacheKey derives a filesystem-safe key from a source URL
func CacheKey(url string) string {
	hash := sha256.Sum256([]byte(url))
	return "decadal-v1-" + hex.EncodeToString(hash[:])
}
