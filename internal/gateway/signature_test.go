package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyHMACSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_123","type":"invoice.paid"}`)
	secret := "whsec_test"
	valid := signPayload(payload, secret)

	tests := []struct {
		name      string
		payload   []byte
		signature string
		secret    string
		want      bool
	}{
		{
			name:      "valid signature",
			payload:   payload,
			signature: valid,
			secret:    secret,
			want:      true,
		},
		{
			name:      "sha256 prefix is stripped",
			payload:   payload,
			signature: "sha256=" + valid,
			secret:    secret,
			want:      true,
		},
		{
			name:      "uppercase hex is accepted",
			payload:   payload,
			signature: "SHA256=" + valid,
			secret:    secret,
			want:      false, // only the lowercase prefix form is recognized
		},
		{
			name:      "surrounding whitespace is trimmed",
			payload:   payload,
			signature: "  " + valid + "  ",
			secret:    secret,
			want:      true,
		},
		{
			name:      "wrong secret",
			payload:   payload,
			signature: valid,
			secret:    "whsec_other",
			want:      false,
		},
		{
			name:      "tampered payload",
			payload:   []byte(`{"id":"evt_123","type":"invoice.failed"}`),
			signature: valid,
			secret:    secret,
			want:      false,
		},
		{
			name:      "empty signature fails closed",
			payload:   payload,
			signature: "",
			secret:    secret,
			want:      false,
		},
		{
			name:      "empty secret fails closed",
			payload:   payload,
			signature: valid,
			secret:    "",
			want:      false,
		},
		{
			name:      "prefix only fails closed",
			payload:   payload,
			signature: "sha256=",
			secret:    secret,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerifyHMACSignature(tt.payload, tt.signature, tt.secret)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifyHMACSignatureCaseInsensitiveHex(t *testing.T) {
	payload := []byte("body")
	secret := "s"
	upper := func(s string) string {
		out := []byte(s)
		for i, c := range out {
			if c >= 'a' && c <= 'f' {
				out[i] = c - 32
			}
		}
		return string(out)
	}

	// Hex digests compare after lower-casing, so uppercase hex verifies.
	assert.True(t, VerifyHMACSignature(payload, upper(signPayload(payload, secret)), secret))
}
