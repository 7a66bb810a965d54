package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureValid(t *testing.T) {
	payload := []byte(`{"action":"created"}`)
	secret := "test-secret"

	if !VerifySignature(payload, sign(payload, secret), secret) {
		t.Error("Expected valid signature to verify")
	}
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	payload := []byte(`{"action":"created"}`)

	if VerifySignature(payload, sign(payload, "other-secret"), "test-secret") {
		t.Error("Signature from a different secret must not verify")
	}
}

func TestVerifySignatureTamperedPayload(t *testing.T) {
	payload := []byte(`{"action":"created"}`)
	signature := sign(payload, "test-secret")

	if VerifySignature([]byte(`{"action":"deleted"}`), signature, "test-secret") {
		t.Error("Tampered payload must not verify")
	}
}

func TestVerifySignatureBadFormat(t *testing.T) {
	if VerifySignature([]byte("x"), "md5=abcdef", "secret") {
		t.Error("Non-sha256 prefix must not verify")
	}
	if VerifySignature([]byte("x"), "sha1=abcdef", "secret") {
		t.Error("Wrong algorithm prefix must not verify")
	}
	if VerifySignature([]byte("x"), "", "secret") {
		t.Error("Missing signature must not verify")
	}
}
