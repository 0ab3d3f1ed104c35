// Package types holds small value types shared across CCOS components:
// content-addressed ids and random ids.
package types

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID returns a fresh random identifier for entities that have no natural
// content hash (e.g. an intent created without a caller-supplied id).
func NewID() string {
	return uuid.NewString()
}

// ContentHash returns a stable hex-encoded SHA-256 digest of body, used for
// plan ids (content-hash of body) and checkpoint ids (hash of serialized
// context).
func ContentHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ContentHashString is a convenience wrapper around ContentHash for string
// inputs.
func ContentHashString(body string) string {
	return ContentHash([]byte(body))
}
