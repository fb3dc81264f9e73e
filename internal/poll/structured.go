package poll

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// coachBallot is the VoterList voter value; fields are declared in key order.
type coachBallot struct {
	Ballot []string `json:"ballot"`
	Team   string   `json:"team"`
}

// Structured returns the nested mapping form of a set. Every level is a map
// so that encoding/json emits keys sorted.
func Structured(set *BallotSet) map[string]any {
	voters := make(map[string]any, set.Len())
	for _, e := range set.Entries() {
		ballot := append([]string(nil), e.Rankings[:]...)
		if set.Identity.Type == VoterList {
			voters[e.Voter] = coachBallot{Ballot: ballot, Team: e.AffiliatedTeam}
			continue
		}
		voters[e.Voter] = ballot
	}
	out := map[string]any{
		"poll":   string(set.Identity.Type),
		"year":   set.Identity.Year,
		"week":   set.Identity.Week,
		"voters": voters,
	}
	if set.PollDate != nil {
		out["date"] = set.PollDate.Format(StructuredDateLayout)
	}
	return out
}

// MarshalStructured renders the structured form as indented JSON.
func MarshalStructured(set *BallotSet) ([]byte, error) {
	data, err := json.MarshalIndent(Structured(set), "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshal structured form: %w", err)
	}
	return data, nil
}

type structuredDoc struct {
	Poll   string          `json:"poll"`
	Year   int             `json:"year"`
	Week   int             `json:"week"`
	Date   string          `json:"date"`
	Voters json.RawMessage `json:"voters"`
}

// ParseStructured rebuilds a BallotSet from MarshalStructured output. Voters
// are added in sorted order because JSON objects carry no order.
func ParseStructured(data []byte) (*BallotSet, error) {
	var doc structuredDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode structured form: %w", err)
	}
	pollType, err := ParsePollType(doc.Poll)
	if err != nil {
		return nil, err
	}
	set := NewBallotSet(NewIdentity(pollType, doc.Year, doc.Week))
	if doc.Date != "" {
		date, err := time.Parse(StructuredDateLayout, doc.Date)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", doc.Date, err)
		}
		set.PollDate = &date
	}

	if pollType == VoterList {
		var voters map[string]coachBallot
		if err := json.Unmarshal(doc.Voters, &voters); err != nil {
			return nil, fmt.Errorf("decode voters: %w", err)
		}
		for _, name := range sortedKeys(voters) {
			v := voters[name]
			ballot, err := toBallot(v.Ballot)
			if err != nil {
				return nil, fmt.Errorf("voter %q: %w", name, err)
			}
			if err := set.Add(Entry{Voter: name, AffiliatedTeam: v.Team, Rankings: ballot}); err != nil {
				return nil, err
			}
		}
		return set, nil
	}

	var voters map[string][]string
	if err := json.Unmarshal(doc.Voters, &voters); err != nil {
		return nil, fmt.Errorf("decode voters: %w", err)
	}
	for _, name := range sortedKeys(voters) {
		ballot, err := toBallot(voters[name])
		if err != nil {
			return nil, fmt.Errorf("voter %q: %w", name, err)
		}
		if err := set.Add(Entry{Voter: name, Rankings: ballot}); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func toBallot(slots []string) (Ballot, error) {
	var b Ballot
	if len(slots) != BallotSize {
		return b, fmt.Errorf("ballot has %d slots, want %d", len(slots), BallotSize)
	}
	copy(b[:], slots)
	return b, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
