package audit

import (
	"crypto/sha256"
	"encoding/hex"
)

// SessionKey identifies a caller's upstream session for cache and lock
// lookups. It is a one-way fingerprint of the raw cookie value so session
// tokens are never stored or logged.
type SessionKey struct {
	hash string
}

// NewSessionKey derives a key from raw cookie data (SHA-256, first 16 bytes,
// hex-encoded). Equal cookies always produce equal keys.
func NewSessionKey(cookieValue string) SessionKey {
	sum := sha256.Sum256([]byte(cookieValue))
	return SessionKey{hash: hex.EncodeToString(sum[:16])}
}

// NewSessionKeyFromJSESSIONID derives a key from a JSESSIONID cookie value.
func NewSessionKeyFromJSESSIONID(jsessionid string) SessionKey {
	return NewSessionKey(jsessionid)
}

// Hash returns the full 32-char hex fingerprint.
func (k SessionKey) Hash() string {
	return k.hash
}

// String shows only the first 8 chars so keys are safe to log.
func (k SessionKey) String() string {
	if len(k.hash) < 8 {
		return k.hash + "..."
	}
	return k.hash[:8] + "..."
}
