package template

import "fmt"

// LimitJoined truncates s to at most maxChars runes, appending a marker
// so downstream consumers can tell the value was cut rather than
// genuinely ending there. A maxChars of 0 disables the limit.
func LimitJoined(s string, maxChars int) string {
	runes := []rune(s)
	if maxChars <= 0 || len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars]) + "\n… [truncated]"
}

// JoinValues joins values with sep, truncating the item count to
// maxItems (0 disables the limit) and noting how many were dropped.
func JoinValues(values []string, sep string, maxItems int) string {
	if maxItems <= 0 || len(values) <= maxItems {
		return joinStrings(values, sep)
	}
	kept := values[:maxItems]
	dropped := len(values) - maxItems
	return joinStrings(kept, sep) + fmt.Sprintf("\n… [+%d more]", dropped)
}

func joinStrings(values []string, sep string) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += sep
		}
		out += v
	}
	return out
}
