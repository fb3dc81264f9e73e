package poll

import (
	"regexp"
	"strings"
)

var (
	parenthetical   = regexp.MustCompile(`\([^)]*\)`)
	innerWhitespace = regexp.MustCompile(`\s+`)
)

// CleanTeamName strips parenthetical suffixes such as first-place vote counts
// and normalizes whitespace: "Alabama (12)" becomes "Alabama".
func CleanTeamName(raw string) string {
	name := parenthetical.ReplaceAllString(raw, "")
	return CollapseSpace(name)
}

// CollapseSpace trims and collapses runs of whitespace to a single space.
func CollapseSpace(raw string) string {
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(raw, " "))
}

// TeamSlug derives the URL segment for a team page: lowercase, spaces to hyphens.
func TeamSlug(name string) string {
	return strings.ReplaceAll(strings.ToLower(CollapseSpace(name)), " ", "-")
}
