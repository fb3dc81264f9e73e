package poll

import (
	"strconv"
	"time"
)

// Table is a CSV-shaped rendering: one or more header rows followed by data rows.
type Table struct {
	Header [][]string
	Rows   [][]string
}

// Records returns header and data rows in write order.
func (t Table) Records() [][]string {
	out := make([][]string, 0, len(t.Header)+len(t.Rows))
	out = append(out, t.Header...)
	return append(out, t.Rows...)
}

// Grid returns the data rows with the first labelCols columns removed.
func (t Table) Grid(labelCols int) [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if labelCols >= len(row) {
			out = append(out, []string{})
			continue
		}
		cells := make([]string, len(row)-labelCols)
		copy(cells, row[labelCols:])
		out = append(out, cells)
	}
	return out
}

// LabelColumns is the number of leading non-ballot columns in a RenderTable result.
func LabelColumns(t PollType, transpose bool) int {
	if transpose && t == VoterList {
		return 2
	}
	return 1
}

// RenderTable builds the rank x voter grid, or the voter x rank grid when
// transpose is set. Columns and rows follow discovery order.
func RenderTable(set *BallotSet, transpose bool) Table {
	entries := set.Entries()
	withTeam := set.Identity.Type == VoterList

	if transpose {
		header := []string{"Voter"}
		if withTeam {
			header = append(header, "Team")
		}
		for rank := 1; rank <= BallotSize; rank++ {
			header = append(header, strconv.Itoa(rank))
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			row := []string{e.Voter}
			if withTeam {
				row = append(row, e.AffiliatedTeam)
			}
			row = append(row, e.Rankings[:]...)
			rows = append(rows, row)
		}
		return Table{Header: [][]string{header}, Rows: rows}
	}

	voters := []string{"Rank"}
	teams := []string{"Team"}
	for _, e := range entries {
		voters = append(voters, e.Voter)
		teams = append(teams, e.AffiliatedTeam)
	}
	header := [][]string{voters}
	if withTeam {
		header = append(header, teams)
	}
	rows := make([][]string, 0, BallotSize)
	for i := 0; i < BallotSize; i++ {
		row := make([]string, 0, len(entries)+1)
		row = append(row, strconv.Itoa(i+1))
		for _, e := range entries {
			row = append(row, e.Rankings[i])
		}
		rows = append(rows, row)
	}
	return Table{Header: header, Rows: rows}
}

// FlatRecord is one (voter, rank, team) triple plus the identity fields the
// source exposes.
type FlatRecord struct {
	Date           *time.Time
	Year           int
	Week           int
	Voter          string
	AffiliatedTeam string
	Rank           int
	Team           string
}

// Flatten produces long-form records. RankTable sets emit all 25 slots per
// voter, sentinel slots included; VoterList sets emit filled slots only.
func Flatten(set *BallotSet) []FlatRecord {
	sentinel := set.Identity.Type.Sentinel()
	skipEmpty := set.Identity.Type == VoterList
	var out []FlatRecord
	for _, e := range set.Entries() {
		for i, team := range e.Rankings {
			if skipEmpty && team == sentinel {
				continue
			}
			out = append(out, FlatRecord{
				Date:           set.PollDate,
				Year:           set.Identity.Year,
				Week:           set.Identity.Week,
				Voter:          e.Voter,
				AffiliatedTeam: e.AffiliatedTeam,
				Rank:           i + 1,
				Team:           team,
			})
		}
	}
	return out
}

// FlatHeader returns the column names of FlatTable for a poll type.
func FlatHeader(t PollType) []string {
	if t == VoterList {
		return []string{"Year", "Week", "Voter", "Affiliated Team", "Rank", "Team"}
	}
	return []string{"Date", "Voter", "Rank", "Team"}
}

// FlatTable renders Flatten output with the per-source schema.
func FlatTable(set *BallotSet) Table {
	records := Flatten(set)
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		if set.Identity.Type == VoterList {
			rows = append(rows, []string{
				strconv.Itoa(r.Year),
				strconv.Itoa(r.Week),
				r.Voter,
				r.AffiliatedTeam,
				strconv.Itoa(r.Rank),
				r.Team,
			})
			continue
		}
		date := ""
		if r.Date != nil {
			date = r.Date.Format(FlatDateLayout)
		}
		rows = append(rows, []string{date, r.Voter, strconv.Itoa(r.Rank), r.Team})
	}
	return Table{Header: [][]string{FlatHeader(set.Identity.Type)}, Rows: rows}
}
