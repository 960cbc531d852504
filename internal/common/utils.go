package common

import "strings"

// HasAnyFold reports whether s contains any of keywords, ignoring case.
// Empty keywords never match.
func HasAnyFold(s string, keywords ...string) bool {
	lower := strings.ToLower(s)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
