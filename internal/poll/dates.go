package poll

import (
	"fmt"
	"strings"
	"time"
)

// Date layouts used by the output shapes.
const (
	StructuredDateLayout = "Monday 01-02-06"
	FlatDateLayout       = "01/02/06"
	releaseDateLayout    = "Jan 2"
)

// LandingYear returns the season label the RankTable site uses for a nominal
// year. The site labels the running season with the following calendar year.
func LandingYear(nominal, current int) int {
	if nominal == current {
		return nominal + 1
	}
	return nominal
}

// InferPollDate places a month/day release date into the right calendar year.
// Releases before August belong to the second half of the season.
func InferPollDate(month time.Month, day, nominal int) time.Time {
	year := nominal
	if month < time.August {
		year = nominal + 1
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseReleaseDate reads the trailing "Mon D" pair from a release marker such
// as "Poll released Aug 20" and resolves its year against nominal.
func ParseReleaseDate(marker string, nominal int) (time.Time, error) {
	fields := strings.Fields(marker)
	if len(fields) < 2 {
		return time.Time{}, fmt.Errorf("release marker %q has no date", marker)
	}
	raw := strings.Join(fields[len(fields)-2:], " ")
	parsed, err := time.Parse(releaseDateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse release date %q: %w", raw, err)
	}
	return InferPollDate(parsed.Month(), parsed.Day(), nominal), nil
}
