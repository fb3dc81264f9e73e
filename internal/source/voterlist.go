package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/EvRoHa/CFB-Poll-Compiler/internal/fetcher"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/poll"
)

// Selectors for the VoterList site markup.
const (
	teamNameSelector   = "span.name"
	coachRowSelector   = "tr[class^='ballot-ranking-row']"
	coachRowCellsWant  = 3
	coachNameColumn    = 0
	coachTeamColumn    = 1
	coachRankColumn    = 2
	landingPathSegment = "coaches"
	schoolPathSegment  = "schools"
)

// teamPage is a team discovered on the landing page.
type teamPage struct {
	Name string
	URL  string
}

// VoterListExtractor scrapes sites that publish one page per team listing
// every coach who ranked it.
type VoterListExtractor struct {
	id          poll.Identity
	getter      fetcher.Getter
	base        *url.URL
	concurrency int
	logger      *zap.Logger
	quality     qualityReporter
}

// NewVoterList builds a VoterListExtractor.
func NewVoterList(
	id poll.Identity,
	getter fetcher.Getter,
	baseURL string,
	concurrency int,
	logger *zap.Logger,
) (*VoterListExtractor, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.Stringer("poll", id))
	return &VoterListExtractor{
		id:          id,
		getter:      getter,
		base:        base,
		concurrency: concurrency,
		logger:      logger,
		quality:     qualityReporter{logger: logger},
	}, nil
}

// Identity returns the poll week being scraped.
func (e *VoterListExtractor) Identity() poll.Identity {
	return e.id
}

// LandingURL is {base}/coaches/{year}/{week}.
func (e *VoterListExtractor) LandingURL() string {
	return joinURL(e.base, landingPathSegment, strconv.Itoa(e.id.Year), strconv.Itoa(e.id.Week))
}

// TeamURL derives a team page from its display name.
func (e *VoterListExtractor) TeamURL(team string) string {
	landing, _ := url.Parse(e.LandingURL())
	return joinURL(landing, schoolPathSegment, poll.TeamSlug(team))
}

// Scrape fetches the team list and every team page, then inverts the
// team -> coach rows into coach ballots.
func (e *VoterListExtractor) Scrape(ctx context.Context) (*poll.BallotSet, error) {
	landing := e.LandingURL()
	e.logger.Info("scraping landing page", zap.String("url", landing))

	resp, err := e.getter.Fetch(ctx, landing)
	if err != nil {
		return nil, fmt.Errorf("fetch landing page: %w", err)
	}
	doc, err := parseDocument(landing, resp.Body)
	if err != nil {
		return nil, err
	}
	teams, err := e.parseTeams(landing, doc)
	if err != nil {
		return nil, err
	}

	acc := newCoachAccumulator(e.quality)
	urls := make([]string, len(teams))
	for i, t := range teams {
		urls[i] = t.URL
	}
	err = forEachPage(ctx, e.getter, urls, e.concurrency, func(i int, body []byte) error {
		return e.parseTeamPage(teams[i], body, acc)
	})
	if err != nil {
		return nil, fmt.Errorf("scrape team pages: %w", err)
	}

	set := poll.NewBallotSet(e.id)
	for _, entry := range acc.Entries() {
		if err := set.Add(entry); err != nil {
			return nil, err
		}
	}
	e.logger.Info("scrape finished", zap.Int("teams", len(teams)), zap.Int("voters", set.Len()))
	return set, nil
}

func (e *VoterListExtractor) parseTeams(pageURL string, doc *goquery.Document) ([]teamPage, error) {
	var (
		teams []teamPage
		seen  = make(map[string]struct{})
	)
	doc.Find(teamNameSelector).Each(func(_ int, span *goquery.Selection) {
		name := poll.CollapseSpace(span.Text())
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		teams = append(teams, teamPage{Name: name, URL: e.TeamURL(name)})
	})
	if len(teams) == 0 {
		return nil, structuralf(pageURL, "no team names matched %q", teamNameSelector)
	}
	return teams, nil
}

// parseTeamPage feeds every coach row of one team page into acc. A page with
// no rows means nobody ranked the team.
func (e *VoterListExtractor) parseTeamPage(team teamPage, body []byte, acc *coachAccumulator) error {
	doc, err := parseDocument(team.URL, body)
	if err != nil {
		return err
	}
	var rowErr error
	doc.Find(coachRowSelector).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.ChildrenFiltered("td")
		if cells.Length() < coachRowCellsWant {
			rowErr = structuralf(team.URL, "coach row has %d cells, want %d", cells.Length(), coachRowCellsWant)
			return false
		}
		coach := poll.CollapseSpace(cells.Eq(coachNameColumn).Text())
		affiliated := poll.CollapseSpace(cells.Eq(coachTeamColumn).Text())
		rawRank := strings.TrimSpace(cells.Eq(coachRankColumn).Text())
		rank, err := strconv.Atoi(rawRank)
		if err != nil {
			rowErr = structuralf(team.URL, "rank %q is not a number", rawRank)
			return false
		}
		if coach == "" {
			rowErr = structuralf(team.URL, "coach row without a coach name")
			return false
		}
		acc.Add(coach, affiliated, team.Name, rank)
		return true
	})
	return rowErr
}
