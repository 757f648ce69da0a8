package paddle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signHeader(ts string, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte(":"))
	mac.Write(body)
	return fmt.Sprintf("ts=%s;h1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignature_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		ts     string
		body   string
		secret string
	}{
		{"simple", "1712345678", `{"event_type":"transaction.paid"}`, "whsec_abc123"},
		{"empty body field", "0", `{}`, "s"},
		{"binary-ish body", "1712345678", "\x00\x01\x02body", "another-secret"},
		{"large timestamp", "99999999999", `{"data":{"id":"sub_1"}}`, "whsec_abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := signHeader(tt.ts, []byte(tt.body), tt.secret)
			assert.True(t, VerifySignature(header, []byte(tt.body), []byte(tt.secret)))
		})
	}
}

func TestVerifySignature_FlippedByte(t *testing.T) {
	body := []byte(`{"event_type":"subscription.activated"}`)
	secret := []byte("whsec_abc123")
	header := signHeader("1712345678", body, string(secret))
	require.True(t, VerifySignature(header, body, secret))

	// Flipping any single hex digit of the signature must fail verification.
	prefix := "ts=1712345678;h1="
	sig := header[len(prefix):]
	for i := 0; i < len(sig); i++ {
		flipped := []byte(sig)
		if flipped[i] == 'f' {
			flipped[i] = '0'
		} else {
			flipped[i] = 'f'
		}
		mutated := prefix + string(flipped)
		assert.False(t, VerifySignature(mutated, body, secret), "position %d", i)
	}
}

func TestVerifySignature_Malformed(t *testing.T) {
	body := []byte(`{}`)
	secret := []byte("whsec_abc123")
	valid := signHeader("1712345678", body, string(secret))

	tests := []struct {
		name   string
		header string
		secret []byte
	}{
		{"empty header", "", secret},
		{"missing h1", "ts=1712345678", secret},
		{"missing ts", "h1=deadbeef", secret},
		{"no key-value pairs", "nonsense;garbage", secret},
		{"wrong signature", "ts=1712345678;h1=deadbeef", secret},
		{"truncated signature", "ts=1712345678;h1=", secret},
		{"empty secret", valid, nil},
		{"whitespace header", "   ", secret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, VerifySignature(tt.header, body, tt.secret))
		})
	}
}

func TestVerifySignature_ToleratesSpacedFields(t *testing.T) {
	body := []byte(`{"a":1}`)
	secret := []byte("s3cret")
	header := signHeader("1700000000", body, string(secret))

	// Paddle sends "ts=...;h1=..." but field separators may carry whitespace.
	spaced := "ts=1700000000; h1=" + header[len("ts=1700000000;h1="):]
	assert.True(t, VerifySignature(spaced, body, secret))
}
