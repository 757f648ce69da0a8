// Package paddle implements the Paddle webhook subsystem: signature
// verification, event normalization and the webhook HTTP handler that keeps
// the paddle_subscriptions table in sync with billing events.
package paddle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature checks a Paddle-Signature header against the raw request
// body. The header is a semicolon-separated list of key=value fields and must
// carry ts (unix seconds) and h1 (hex HMAC). The signed payload is
// "<ts>:<body>" with the shared secret as HMAC-SHA256 key.
//
// Pure function of (header, body, secret); returns false on a missing header,
// an unconfigured secret, missing fields or an unparseable header - it never
// panics. The comparison is constant time.
func VerifySignature(header string, body []byte, secret []byte) bool {
	header = strings.TrimSpace(header)
	if header == "" || len(secret) == 0 {
		return false
	}

	var ts, h1 string
	for _, part := range strings.Split(header, ";") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "ts":
			ts = kv[1]
		case "h1":
			h1 = kv[1]
		}
	}
	if ts == "" || h1 == "" {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts))
	mac.Write([]byte(":"))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(h1))
}
