package wikipedia

import (
	"regexp"
	"strings"
)

// Excluded title patterns (namespaced pages, list articles)
var excludedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`:`),
	regexp.MustCompile(`^List of`),
}

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// IsExcluded checks if a title matches any excluded pattern
func IsExcluded(title string) bool {
	for _, pattern := range excludedPatterns {
		if pattern.MatchString(title) {
			return true
		}
	}
	return false
}

// FilterLinks drops excluded and blank titles and keeps at most maxLinks,
// preserving the order the API returned them in
func FilterLinks(titles []string, maxLinks int) []string {
	filtered := make([]string, 0, len(titles))

	for _, title := range titles {
		if strings.TrimSpace(title) == "" {
			continue
		}
		if IsExcluded(title) {
			continue
		}

		filtered = append(filtered, title)

		if maxLinks > 0 && len(filtered) >= maxLinks {
			break
		}
	}

	return filtered
}

// StripTags removes HTML markup from search snippets
func StripTags(s string) string {
	return htmlTagRegex.ReplaceAllString(s, "")
}
