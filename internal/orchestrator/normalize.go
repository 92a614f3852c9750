package orchestrator

import "strings"

// NormalizeError canonicalizes error text arriving from hook payloads.
// Hosts serialize absent errors as the literal string "null" or as empty
// text; both mean no error occurred.
func NormalizeError(errorText string) string {
	trimmed := strings.TrimSpace(errorText)
	if strings.EqualFold(trimmed, "null") {
		return ""
	}
	return trimmed
}
