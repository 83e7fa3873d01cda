// Package phone converts between canonical E.164 numbers and the
// WhatsApp channel address form Twilio uses ("whatsapp:+549...").
package phone

import "regexp"

// Prefix is the channel scheme Twilio prepends to WhatsApp addresses.
const Prefix = "whatsapp:"

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// ToWhatsApp prefixes an E.164 number with the whatsapp: scheme.
// Idempotent: an already prefixed address is returned unchanged.
func ToWhatsApp(e164 string) string {
	if len(e164) >= len(Prefix) && e164[:len(Prefix)] == Prefix {
		return e164
	}
	return Prefix + e164
}

// ToE164 strips the whatsapp: scheme prefix, if present.
func ToE164(address string) string {
	if len(address) >= len(Prefix) && address[:len(Prefix)] == Prefix {
		return address[len(Prefix):]
	}
	return address
}

// IsValidE164 reports whether s is a plus sign followed by a leading
// non-zero digit and 7 to 14 further digits.
func IsValidE164(s string) bool {
	return e164Pattern.MatchString(s)
}
