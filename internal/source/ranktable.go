package source

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/EvRoHa/CFB-Poll-Compiler/internal/fetcher"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/poll"
)

// Selectors for the RankTable site markup.
const (
	releaseMarkerSelector = "div#poll-released"
	voterMenuSelector     = "div.voter-menu"
	ballotRowSelector     = "tr[class]"
)

var numericClass = regexp.MustCompile(`[0-9]`)

// voterLink is one entry of the landing page's voter menu.
type voterLink struct {
	Name string
	URL  string
}

// RankTableExtractor scrapes sites whose landing page links to one ranked
// table per voter.
type RankTableExtractor struct {
	id          poll.Identity
	getter      fetcher.Getter
	base        *url.URL
	currentYear int
	concurrency int
	logger      *zap.Logger
	quality     qualityReporter
}

// NewRankTable builds a RankTableExtractor.
func NewRankTable(
	id poll.Identity,
	getter fetcher.Getter,
	baseURL string,
	currentYear int,
	concurrency int,
	logger *zap.Logger,
) (*RankTableExtractor, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.Stringer("poll", id))
	return &RankTableExtractor{
		id:          id,
		getter:      getter,
		base:        base,
		currentYear: currentYear,
		concurrency: concurrency,
		logger:      logger,
		quality:     qualityReporter{logger: logger},
	}, nil
}

// Identity returns the poll week being scraped.
func (e *RankTableExtractor) Identity() poll.Identity {
	return e.id
}

// LandingURL is the poll page for the season-adjusted year.
func (e *RankTableExtractor) LandingURL() string {
	year := poll.LandingYear(e.id.Year, e.currentYear)
	return joinURL(e.base, "poll", strconv.Itoa(year), strconv.Itoa(e.id.Week))
}

// Scrape fetches the landing page and every voter ballot.
func (e *RankTableExtractor) Scrape(ctx context.Context) (*poll.BallotSet, error) {
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

	marker := doc.Find(releaseMarkerSelector).First()
	if marker.Length() == 0 {
		return nil, structuralf(landing, "release marker %q not found", releaseMarkerSelector)
	}
	date, err := poll.ParseReleaseDate(marker.Text(), e.id.Year)
	if err != nil {
		return nil, structuralf(landing, "release marker: %v", err)
	}

	voters, err := e.parseVoterMenu(landing, doc)
	if err != nil {
		return nil, err
	}

	set := poll.NewBallotSet(e.id)
	set.PollDate = &date

	urls := make([]string, len(voters))
	for i, v := range voters {
		urls[i] = v.URL
	}
	err = forEachPage(ctx, e.getter, urls, e.concurrency, func(i int, body []byte) error {
		ballot, err := e.parseBallot(voters[i].URL, body)
		if err != nil {
			return err
		}
		return set.Add(poll.Entry{Voter: voters[i].Name, Rankings: ballot})
	})
	if err != nil {
		return nil, fmt.Errorf("scrape voter ballots: %w", err)
	}

	e.logger.Info("scrape finished", zap.Int("voters", set.Len()))
	return set, nil
}

// parseVoterMenu extracts (name, absolute url) pairs from the voter menu.
func (e *RankTableExtractor) parseVoterMenu(pageURL string, doc *goquery.Document) ([]voterLink, error) {
	menu := doc.Find(voterMenuSelector).First()
	if menu.Length() == 0 {
		return nil, structuralf(pageURL, "voter menu %q not found", voterMenuSelector)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse landing url: %w", err)
	}

	var (
		links []voterLink
		seen  = make(map[string]struct{})
	)
	menu.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		name := poll.CollapseSpace(a.Text())
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if name == "" || err != nil {
			return
		}
		if _, dup := seen[name]; dup {
			e.quality.warn(warnDuplicateVoter, "voter listed twice in menu", zap.String("voter", name))
			return
		}
		seen[name] = struct{}{}
		links = append(links, voterLink{Name: name, URL: base.ResolveReference(ref).String()})
	})
	if len(links) == 0 {
		return nil, structuralf(pageURL, "voter menu lists no voters")
	}
	return links, nil
}

// parseBallot reads the ranked rows of a voter page into a dense ballot.
// Rows may arrive in any order; a repeated rank overwrites the earlier team.
func (e *RankTableExtractor) parseBallot(pageURL string, body []byte) (poll.Ballot, error) {
	ballot := poll.NewBallot(poll.UnrankedMarker)

	doc, err := parseDocument(pageURL, body)
	if err != nil {
		return ballot, err
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return ballot, structuralf(pageURL, "ballot table not found")
	}

	var rowErr error
	table.Find(ballotRowSelector).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		class, _ := row.Attr("class")
		if !numericClass.MatchString(class) {
			return true
		}
		cells := row.ChildrenFiltered("td, th")
		if cells.Length() < 2 {
			rowErr = structuralf(pageURL, "ballot row has %d cells, want 2", cells.Length())
			return false
		}
		rawRank := strings.TrimSpace(cells.Eq(0).Text())
		rank, err := strconv.Atoi(rawRank)
		if err != nil {
			rowErr = structuralf(pageURL, "rank %q is not a number", rawRank)
			return false
		}
		team := poll.CleanTeamName(cells.Eq(1).Text())
		placeTeam(&ballot, rank, team, poll.UnrankedMarker, e.quality, zap.String("url", pageURL))
		return true
	})
	return ballot, rowErr
}

// placeTeam writes team at rank-1, warning on overwrite and skipping ranks
// outside 1..25.
func placeTeam(ballot *poll.Ballot, rank int, team, sentinel string, q qualityReporter, fields ...zap.Field) {
	fields = append(fields, zap.Int("rank", rank), zap.String("team", team))
	if rank < 1 || rank > poll.BallotSize {
		q.warn(warnRankOutOfRange, "rank outside ballot range; row skipped", fields...)
		return
	}
	if prev := ballot[rank-1]; prev != sentinel {
		q.warn(warnDuplicateRank, "rank filled twice; keeping the later team",
			append(fields, zap.String("replaced", prev))...)
	}
	ballot[rank-1] = team
}
