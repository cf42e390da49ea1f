package domain

import (
	"regexp"
	"strings"
	"time"
)

type Category struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name, collapses every run of non-alphanumerics into a
// single dash and trims dashes at both ends.
func Slugify(name string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}
