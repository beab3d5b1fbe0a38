// Package hasher produces the content digest that serves as the identity of
// a stored blob. Two buffers with identical bytes always hash identically,
// regardless of filename or declared MIME type; this is the sole mechanism
// behind deduplication.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the lowercase hex SHA-256 digest of the buffer
func Digest(buffer []byte) string {
	sum := sha256.Sum256(buffer)
	return hex.EncodeToString(sum[:])
}
