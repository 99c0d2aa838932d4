package signature

import (
	"crypto/hmac"
	"strings"
)

// Verify reports whether sig authenticates payload under secret. sig may be
// a bare hex digest or a full header value carrying the Scheme prefix.
func Verify(secret string, payload []byte, sig string) bool {
	sig = strings.TrimPrefix(strings.TrimSpace(sig), Scheme)
	if sig == "" {
		return false
	}
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(sig)))
}
