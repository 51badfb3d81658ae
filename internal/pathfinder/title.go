package pathfinder

import "strings"

// NormalizeTitle canonicalizes a title for identity comparison only.
// Display strings and returned paths always keep the original spelling.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(title), " ", "_"))
}

// SameTitle reports whether two titles denote the same article
func SameTitle(a, b string) bool {
	return NormalizeTitle(a) == NormalizeTitle(b)
}
