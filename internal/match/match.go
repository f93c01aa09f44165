// Package match implements the substring filename filter used when scanning
// product directories.
package match

import "strings"

// Pattern filters strings by a set of substrings. With MatchAll every
// substring must be present (AND); otherwise any one suffices (OR). An empty
// or nil substring set matches everything.
type Pattern struct {
	Substrings    []string
	MatchAll      bool
	CaseSensitive bool
}

// Matches reports whether s satisfies the pattern.
func (p Pattern) Matches(s string) bool {
	if len(p.Substrings) == 0 {
		return true
	}

	if !p.CaseSensitive {
		s = strings.ToLower(s)
	}

	for _, sub := range p.Substrings {
		if !p.CaseSensitive {
			sub = strings.ToLower(sub)
		}
		found := strings.Contains(s, sub)

		if p.MatchAll && !found {
			return false
		}
		if !p.MatchAll && found {
			return true
		}
	}
	return p.MatchAll
}
