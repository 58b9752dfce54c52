package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken hashes a token string.
func HashToken(token string) string {
	hasher := sha256.New()
	hasher.Write([]byte(token))
	return hex.EncodeToString(hasher.Sum(nil))
}

// Fingerprint is a short, log-safe identifier for a token.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return HashToken(token)[:12]
}
