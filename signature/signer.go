// Package signature signs outbound webhook payloads with HMAC-SHA256.
//
// The digest is computed over the exact request body bytes and sent as
// "sha256=<hex>" in the X-Beacon-Signature header. Receivers recompute the
// digest with the shared secret and compare in constant time.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Scheme prefixes the digest in the signature header.
const Scheme = "sha256="

// Sign returns the lowercase hex HMAC-SHA256 of payload keyed by secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Header returns the signature header value for payload.
func Header(secret string, payload []byte) string {
	return Scheme + Sign(secret, payload)
}
