package shared

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeEmail trims and case-folds an email address so lookups match
// regardless of how the address was typed.
func NormalizeEmail(email string) string {
	// Casers keep internal state, so one is built per call.
	return cases.Fold().String(strings.TrimSpace(email))
}
