package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature reports whether signature authenticates payload under the
// shared secret. GitHub sends the header as "sha256=<hex>"; anything else,
// including a missing header, fails. The comparison is constant time.
func VerifySignature(payload []byte, signature, secret string) bool {
	received, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(received), []byte(expected))
}
