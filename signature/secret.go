package signature

import (
	"crypto/rand"
	"encoding/hex"
)

// SecretPrefix marks secrets generated by Beacon.
const SecretPrefix = "whsec_"

// GenerateSecret returns a random signing secret: SecretPrefix followed by
// 32 random bytes in hex (70 characters).
func GenerateSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("beacon: failed to generate random secret: " + err.Error())
	}
	return SecretPrefix + hex.EncodeToString(b)
}
