package system

import (
	"testing"
	"time"
)

// TestClockNowUTC ensures the clock returns UTC timestamps.
func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
	if clk.CurrentYear() != got.Year() {
		t.Fatalf("expected current year %d, got %d", got.Year(), clk.CurrentYear())
	}
}

func TestFixedClock(t *testing.T) {
	t.Parallel()

	pinned := time.Date(2018, time.October, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))
	clk := Fixed(pinned)
	if !clk.Now().Equal(pinned) || clk.Now().Location() != time.UTC {
		t.Fatalf("expected pinned UTC time, got %v", clk.Now())
	}
	if clk.CurrentYear() != 2018 {
		t.Fatalf("expected 2018, got %d", clk.CurrentYear())
	}
}
