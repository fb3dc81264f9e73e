// Package poll defines the canonical ballot model shared by every source and
// the renderers that turn a finished BallotSet into its output shapes.
package poll

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// BallotSize is the number of rank slots on every ballot.
const BallotSize = 25

// Week bounds for a regular season poll.
const (
	MinWeek = 1
	MaxWeek = 15
)

// PollType identifies which upstream site a poll is scraped from.
type PollType string

// Supported poll types.
const (
	// RankTable polls publish one ranked table per voter.
	RankTable PollType = "ap"
	// VoterList polls publish one page per team listing the coaches who ranked it.
	VoterList PollType = "coaches"
)

// Sentinels for unfilled rank slots.
const (
	UnrankedMarker = "unranked"
	EmptyMarker    = ""
)

// ErrUnknownPollType is returned when a poll type string cannot be parsed.
var ErrUnknownPollType = errors.New("unknown poll type")

// ParsePollType accepts the short names used on the command line and in URLs.
func ParsePollType(raw string) (PollType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ap", "ranktable":
		return RankTable, nil
	case "coaches", "voterlist":
		return VoterList, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPollType, raw)
	}
}

// DisplayName is the human name used in output filenames.
func (t PollType) DisplayName() string {
	switch t {
	case RankTable:
		return "AP Poll"
	case VoterList:
		return "Coaches Poll"
	default:
		return string(t)
	}
}

// Sentinel returns the marker used for empty slots by this source.
func (t PollType) Sentinel() string {
	if t == VoterList {
		return EmptyMarker
	}
	return UnrankedMarker
}

// Identity is the (type, year, week) triple that parameterizes a scrape.
type Identity struct {
	Type PollType
	Year int
	Week int
}

// NewIdentity builds an Identity, clamping weeks outside [1,15] to 1.
func NewIdentity(t PollType, year, week int) Identity {
	if week < MinWeek || week > MaxWeek {
		week = MinWeek
	}
	return Identity{Type: t, Year: year, Week: week}
}

func (id Identity) String() string {
	return fmt.Sprintf("%d Week %d %s", id.Year, id.Week, id.Type.DisplayName())
}

// Ballot is a dense rank-ordered sequence; index i holds rank i+1.
type Ballot [BallotSize]string

// NewBallot returns a ballot with every slot set to sentinel.
func NewBallot(sentinel string) Ballot {
	var b Ballot
	for i := range b {
		b[i] = sentinel
	}
	return b
}

// Filled counts slots that differ from sentinel.
func (b Ballot) Filled(sentinel string) int {
	n := 0
	for _, team := range b {
		if team != sentinel {
			n++
		}
	}
	return n
}

// Entry is a single voter's submission.
type Entry struct {
	Voter string
	// AffiliatedTeam is only populated by VoterList sources.
	AffiliatedTeam string
	Rankings       Ballot
}

// BallotSet is the full snapshot of one poll week.
type BallotSet struct {
	Identity Identity
	PollDate *time.Time

	order   []string
	entries map[string]Entry
}

// ErrDuplicateVoter is returned by Add when the voter id is already present.
var ErrDuplicateVoter = errors.New("duplicate voter")

// NewBallotSet returns an empty set for id.
func NewBallotSet(id Identity) *BallotSet {
	return &BallotSet{
		Identity: id,
		entries:  make(map[string]Entry),
	}
}

// Add appends an entry, preserving discovery order.
func (s *BallotSet) Add(e Entry) error {
	if strings.TrimSpace(e.Voter) == "" {
		return errors.New("voter id is required")
	}
	if _, ok := s.entries[e.Voter]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateVoter, e.Voter)
	}
	s.entries[e.Voter] = e
	s.order = append(s.order, e.Voter)
	return nil
}

// Len is the number of voters.
func (s *BallotSet) Len() int {
	return len(s.order)
}

// Voters returns voter ids in discovery order.
func (s *BallotSet) Voters() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Entry looks up a single voter.
func (s *BallotSet) Entry(voter string) (Entry, bool) {
	e, ok := s.entries[voter]
	return e, ok
}

// Entries returns all entries in discovery order.
func (s *BallotSet) Entries() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, v := range s.order {
		out = append(out, s.entries[v])
	}
	return out
}

// Equal reports whether two sets hold the same identity, date and ballots.
// Discovery order is not compared.
func (s *BallotSet) Equal(other *BallotSet) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Identity != other.Identity || s.Len() != other.Len() {
		return false
	}
	switch {
	case s.PollDate == nil && other.PollDate == nil:
	case s.PollDate == nil || other.PollDate == nil:
		return false
	case !sameDay(*s.PollDate, *other.PollDate):
		return false
	}
	for voter, e := range s.entries {
		o, ok := other.entries[voter]
		if !ok || o != e {
			return false
		}
	}
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
