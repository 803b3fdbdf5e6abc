package common

import "strings"

// MatchesAny reports whether s equals any of the candidates, ignoring case and
// surrounding whitespace.
func MatchesAny(s string, candidates ...string) bool {
	s = strings.TrimSpace(s)
	for _, c := range candidates {
		if strings.EqualFold(s, c) {
			return true
		}
	}
	return false
}

// Affirmative reports whether a console answer means yes.
func Affirmative(answer string) bool {
	return MatchesAny(answer, "y", "yes")
}

// SplitList splits a comma separated list, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
