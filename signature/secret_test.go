package signature_test

import (
	"strings"
	"testing"

	"github.com/xraph/beacon/signature"
)

func TestGenerateSecretFormat(t *testing.T) {
	secret := signature.GenerateSecret()

	if !strings.HasPrefix(secret, signature.SecretPrefix) {
		t.Errorf("expected prefix %q, got %q", signature.SecretPrefix, secret)
	}
	if len(secret) != 70 {
		t.Errorf("expected length 70, got %d for %q", len(secret), secret)
	}
	for i, c := range strings.TrimPrefix(secret, signature.SecretPrefix) {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Errorf("non-hex character at position %d: %c", i, c)
		}
	}
}

func TestGenerateSecretUniqueness(t *testing.T) {
	if signature.GenerateSecret() == signature.GenerateSecret() {
		t.Error("two GenerateSecret() calls returned the same value")
	}
}
