// Package checksum provides content digests used for change detection:
// the composer hashes serialized trees to skip redundant resolutions, and
// the bundle directory hashes files so sync can skip already-imported
// bundles.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
