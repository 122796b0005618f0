package domain

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+971 50 123 4567": "971501234567",
		"00971501234567":   "971501234567",
		"(050) 123-4567":   "0501234567",
		"not a phone":      "",
	}
	for in, want := range cases {
		if got := NormalizePhone(in); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}
