package validate

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,30}$`)

func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

// MaxRunes reports whether value fits in limit characters.
func MaxRunes(value string, limit int) bool {
	return utf8.RuneCountInString(value) <= limit
}

func Username(value string) bool {
	return usernamePattern.MatchString(value)
}

// Tags trims, lower-cases and deduplicates tags, dropping empty ones.
// The result is sorted so equal sets compare equal.
func Tags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
