// Package system provides the clocks that supply "now" to scrapes. The
// current calendar year is passed into extractors explicitly; nothing below
// cmd reads the wall clock.
package system

import "time"

// Clock reports wall-clock time in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// CurrentYear returns the calendar year used for season-label adjustment.
func (c Clock) CurrentYear() int {
	return c.Now().Year()
}

// Fixed is a clock pinned to one instant.
type Fixed time.Time

// Now returns the pinned instant.
func (f Fixed) Now() time.Time {
	return time.Time(f).UTC()
}

// CurrentYear returns the pinned instant's year.
func (f Fixed) CurrentYear() int {
	return f.Now().Year()
}
