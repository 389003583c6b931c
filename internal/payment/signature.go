package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyWebhookSignature checks the gateway's HMAC-SHA256 signature over
// the exact raw request bytes.  The signature header carries the digest
// hex-encoded.  Verification must happen before the body is parsed;
// comparison is constant time.  A missing signature or secret always
// fails.
func VerifyWebhookSignature(rawBody []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
