package domain

import "strings"

const (
	OutcomeInvalidEIN    = "Invalid EIN Format"
	OutcomeNotFound      = "Not Found"
	OutcomeStatusUnclear = "Found - Status Unclear"
)

// NormalizeEIN strips everything but digits. ok reports whether exactly nine
// digits remain.
func NormalizeEIN(raw string) (digits string, ok bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits = b.String()
	return digits, len(digits) == 9
}
