package domain

import "strings"

// NormalizePhone reduces a phone number to canonical digits so differently
// formatted inputs compare equal. It is the lead dedup key: "+971 50 123-4567",
// "0097150 1234567" and "971501234567" all normalize to "971501234567".
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	digits = strings.TrimPrefix(digits, "00")
	return digits
}
