// Package tag canonicalizes Clash of Clans player and clan tags so that values
// typed into the roster sheet, returned by the game API and passed in query
// strings all compare the same way.
package tag

import "strings"

// Marker is the leading character of every canonical tag.
const Marker = "#"

// Normalize returns the canonical form of a tag: trimmed, upper-cased and
// prefixed with exactly one marker. Empty input yields "".
func Normalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimLeft(s, Marker)
	if s == "" {
		return ""
	}
	return Marker + s
}

// Key returns the comparison form of a tag (normalized, marker stripped).
func Key(raw string) string {
	return strings.TrimPrefix(Normalize(raw), Marker)
}

// Equal reports whether two tags refer to the same player or clan.
// Two absent tags are never equal.
func Equal(a, b string) bool {
	ka := Key(a)
	return ka != "" && ka == Key(b)
}
