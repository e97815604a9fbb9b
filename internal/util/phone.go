package util

import (
	"regexp"
	"strings"
)

var nonDialable = regexp.MustCompile(`[^\d\+]+`)

// DefaultCountryCode is prepended to bare 10-digit national numbers.
const DefaultCountryCode = "1"

// NormalizePhone tries to normalize user input into E.164-like format.
func NormalizePhone(raw string) string {
	s := nonDialable.ReplaceAllString(strings.TrimSpace(raw), "")
	if s == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(s, "+"):
	case strings.HasPrefix(s, "00"):
		s = "+" + s[2:]
	case len(s) == 10:
		s = "+" + DefaultCountryCode + s
	case len(s) == 11 && strings.HasPrefix(s, DefaultCountryCode):
		s = "+" + s
	default:
		s = "+" + s
	}

	return s
}

// SplitChannelAddress splits Twilio "channel:number" addresses
// ("whatsapp:+15550001111") into their parts. Bare numbers have no channel.
func SplitChannelAddress(addr string) (channel, number string) {
	addr = strings.TrimSpace(addr)
	if i := strings.Index(addr, ":"); i >= 0 {
		return strings.ToLower(addr[:i]), strings.TrimSpace(addr[i+1:])
	}
	return "", addr
}
