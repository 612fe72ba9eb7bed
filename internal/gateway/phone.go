package gateway

import "strings"

// NormalizePhone canonicalizes a phone number to country-code-prefixed
// digits ("254712345678"). Idempotent: an already-canonical number is
// returned unchanged.
func (c *Client) NormalizePhone(raw string) string {
	return NormalizePhone(raw, c.cfg.CountryCode)
}

func NormalizePhone(raw, countryCode string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	phone := b.String()

	switch {
	case phone == "":
		return phone
	case strings.HasPrefix(phone, "0"):
		return countryCode + phone[1:]
	case strings.HasPrefix(phone, countryCode):
		return phone
	default:
		return countryCode + phone
	}
}
