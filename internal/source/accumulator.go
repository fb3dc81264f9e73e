package source

import (
	"sort"

	"go.uber.org/zap"

	"github.com/EvRoHa/CFB-Poll-Compiler/internal/poll"
)

type rankedTeam struct {
	team string
	rank int
}

type coachTally struct {
	affiliated string
	picks      []rankedTeam
}

// coachAccumulator inverts team -> voter pages into voter -> ballot.
// Pass one (Add) collects unordered (team, rank) pairs per coach; pass two
// (Entries) sorts and scatters them into dense ballots.
type coachAccumulator struct {
	order   []string
	coaches map[string]*coachTally
	quality qualityReporter
}

func newCoachAccumulator(q qualityReporter) *coachAccumulator {
	return &coachAccumulator{
		coaches: make(map[string]*coachTally),
		quality: q,
	}
}

// Add records that coach ranked team at rank. The first affiliation seen for
// a coach is kept.
func (a *coachAccumulator) Add(coach, affiliated, team string, rank int) {
	tally, ok := a.coaches[coach]
	if !ok {
		tally = &coachTally{affiliated: affiliated}
		a.coaches[coach] = tally
		a.order = append(a.order, coach)
	} else if tally.affiliated != affiliated {
		a.quality.warn(warnAffiliationChange, "coach listed with a different team; keeping first",
			zap.String("coach", coach),
			zap.String("kept", tally.affiliated),
			zap.String("ignored", affiliated))
	}
	tally.picks = append(tally.picks, rankedTeam{team: team, rank: rank})
}

// Len is the number of coaches seen.
func (a *coachAccumulator) Len() int {
	return len(a.order)
}

// Entries materializes one ballot per coach in first-seen order.
func (a *coachAccumulator) Entries() []poll.Entry {
	out := make([]poll.Entry, 0, len(a.order))
	for _, coach := range a.order {
		tally := a.coaches[coach]
		picks := append([]rankedTeam(nil), tally.picks...)
		sort.SliceStable(picks, func(i, j int) bool {
			return picks[i].rank < picks[j].rank
		})
		ballot := poll.NewBallot(poll.EmptyMarker)
		for _, p := range picks {
			placeTeam(&ballot, p.rank, p.team, poll.EmptyMarker, a.quality, zap.String("coach", coach))
		}
		out = append(out, poll.Entry{
			Voter:          coach,
			AffiliatedTeam: tally.affiliated,
			Rankings:       ballot,
		})
	}
	return out
}
