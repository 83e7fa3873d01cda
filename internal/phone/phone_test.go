package phone

import "testing"

func TestToWhatsApp(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"bare e164", "+5493416000000", "whatsapp:+5493416000000"},
		{"already prefixed", "whatsapp:+5493416000000", "whatsapp:+5493416000000"},
		{"empty", "", "whatsapp:"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ToWhatsApp(tc.input); got != tc.want {
				t.Fatalf("ToWhatsApp(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestToE164(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"prefixed", "whatsapp:+5493416000000", "+5493416000000"},
		{"bare", "+5493416000000", "+5493416000000"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ToE164(tc.input); got != tc.want {
				t.Fatalf("ToE164(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	numbers := []string{"+12025550123", "+5493416000000", "+442071838750"}
	for _, n := range numbers {
		if got := ToE164(ToWhatsApp(n)); got != n {
			t.Fatalf("round trip of %q = %q", n, got)
		}
	}
}

func TestIsValidE164(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"+12345678", true},           // 8 digits total: lower bound
		{"+1234567", false},           // 7 digits: too short
		{"+123456789012345", true},    // 15 digits: upper bound
		{"+1234567890123456", false},  // 16 digits: too long
		{"+0123456789", false},        // leading zero
		{"12345678", false},           // missing plus
		{"+54 9341 600 0000", false},  // spaces
		{"whatsapp:+12345678", false}, // channel prefix
		{"", false},
	}
	for _, tc := range cases {
		if got := IsValidE164(tc.input); got != tc.want {
			t.Errorf("IsValidE164(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
