package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifyHMACSignature verifies an HMAC-SHA256 hex signature over the raw
// payload bytes. A leading "sha256=" prefix is stripped before comparison.
// Comparison is constant-time. Fails closed: empty secret or signature
// always verify false.
func VerifyHMACSignature(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}

	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}
