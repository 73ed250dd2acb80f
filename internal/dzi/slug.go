package dzi

import (
	"regexp"
	"strings"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases a display name and collapses every non-alphanumeric run
// into a single dash, producing a URL-safe pyramid name for associated images.
func Slugify(name string) string {
	return slugPattern.ReplaceAllString(strings.ToLower(name), "-")
}
