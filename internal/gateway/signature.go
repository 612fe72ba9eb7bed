package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyWebhookSignature checks the HMAC-SHA256 signature over the exact
// raw payload bytes. When no secret is configured the outcome depends on
// AllowUnsigned: development setups may accept unsigned callbacks (logged),
// everything else rejects them.
func (c *Client) VerifyWebhookSignature(rawBody []byte, signature string) error {
	if c.cfg.WebhookSecret == "" {
		if c.cfg.AllowUnsigned {
			c.log.Warn("webhook secret not configured, skipping verification")
			return nil
		}
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(c.cfg.WebhookSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
