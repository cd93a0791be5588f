package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SearchResultKey names the cached result set of one search source for one
// query. The query is hashed so free-form text stays out of the key space.
func SearchResultKey(source, query string) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("search:%s:%s", source, hex.EncodeToString(sum[:8]))
}

// RateLimitKey names the fixed-window request counter for one client identity,
// either an API key prefix or a remote address.
func RateLimitKey(identity string) string {
	return fmt.Sprintf("ratelimit:%s", identity)
}
