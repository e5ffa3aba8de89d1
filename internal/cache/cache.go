package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"golang.org/x/text/cases"
)

// NoExpiration stores an entry until the cache is explicitly cleared.
const NoExpiration time.Duration = -1

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Clear() error
}

// Key builds the cache key for a company/speaker pair. The composite is case
// folded so "ACME|Jane" and "acme|jane" share one entry.
func Key(company, speakerName string) string {
	folded := cases.Fold().String(company + "|" + speakerName)
	hash := sha256.Sum256([]byte(folded))
	return "speakerpipe:v1:" + hex.EncodeToString(hash[:])
}
