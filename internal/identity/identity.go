// Package identity computes stable content digests for deduplication and change detection.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns a stable hex digest of content. Identical content always yields
// the identical digest regardless of document ID or process restarts, so it
// serves both as a duplicate-content check and as a cheap change marker before
// paying for an embedding computation.
func Hash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
