package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// keyPrefix is the format prefix every API key carries. It lets malformed
// credentials be rejected without a database lookup.
const keyPrefix = "sk_live_"

// displayPrefixLen is how many leading characters of the raw key are kept as
// a non-secret display fragment, e.g. "sk_live_XXXXXXXX".
const displayPrefixLen = 16

// GenerateKey returns a new raw API key: sk_live_ followed by 32 random
// bytes hex-encoded. The raw key is shown to the caller exactly once and is
// never stored, only its hash.
func GenerateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating key bytes: %w", err)
	}
	return keyPrefix + hex.EncodeToString(buf), nil
}

// HashKey returns the hex-encoded SHA-256 hash of a raw key, the only form
// in which keys are persisted.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// KeyPrefix returns the non-secret display fragment of a raw key.
func KeyPrefix(raw string) string {
	if len(raw) < displayPrefixLen {
		return raw
	}
	return raw[:displayPrefixLen]
}

// HasKeyPrefix reports whether raw has the recognized key format prefix.
func HasKeyPrefix(raw string) bool {
	return strings.HasPrefix(raw, keyPrefix)
}
