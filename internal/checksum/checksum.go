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

// Revision returns the ETag-style checksum of a revision's title and raw
// body. It changes exactly when the no-op guard would let a save through.
func Revision(title, bodyRaw string) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(bodyRaw))
	return hex.EncodeToString(h.Sum(nil))
}
