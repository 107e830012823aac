package semantic

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// ShortDigest returns a compact digest of a semantic key for log fields
// and CLI tables. Full keys embed whole JSON fingerprints and are
// unreadable inline; eight hash bytes in base58 identify an entry well
// enough to follow it across log lines.
func ShortDigest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return base58.Encode(sum[:8])
}
