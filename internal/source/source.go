// Package source implements the site-specific extractors that scrape a poll
// week into a poll.BallotSet.
//
// Both extractors follow the same shape: fetch a landing page, discover the
// detail pages (voters or teams), fetch each one and fold the parsed rows into
// a fresh BallotSet. Any fetch or structural failure discards the set.
package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/EvRoHa/CFB-Poll-Compiler/internal/fetcher"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/poll"
)

// Default upstream origins.
const (
	DefaultRankTableBaseURL = "https://collegefootball.ap.org"
	DefaultVoterListBaseURL = "https://sportsdata.usatoday.com/ncaa/football/polls"
)

// Source scrapes one poll week.
type Source interface {
	Identity() poll.Identity
	Scrape(ctx context.Context) (*poll.BallotSet, error)
}

// Config holds the upstream locations and fetch fan-out.
type Config struct {
	RankTableBaseURL string
	VoterListBaseURL string
	// Concurrency bounds parallel detail-page fetches; values <= 1 fetch sequentially.
	Concurrency int
}

// New selects the extractor for id.Type. currentYear drives the RankTable
// season-label adjustment.
func New(id poll.Identity, getter fetcher.Getter, cfg Config, currentYear int, logger *zap.Logger) (Source, error) {
	if getter == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	switch id.Type {
	case poll.RankTable:
		return NewRankTable(id, getter, orDefault(cfg.RankTableBaseURL, DefaultRankTableBaseURL),
			currentYear, cfg.Concurrency, logger)
	case poll.VoterList:
		return NewVoterList(id, getter, orDefault(cfg.VoterListBaseURL, DefaultVoterListBaseURL),
			cfg.Concurrency, logger)
	default:
		return nil, fmt.Errorf("%w: %q", poll.ErrUnknownPollType, id.Type)
	}
}

// StructuralParseError means an expected element was missing or malformed:
// the page no longer matches the markup the extractor was written against.
type StructuralParseError struct {
	URL  string
	What string
}

func (e *StructuralParseError) Error() string {
	return fmt.Sprintf("unexpected page structure at %s: %s", e.URL, e.What)
}

func structuralf(pageURL, format string, args ...any) error {
	return &StructuralParseError{URL: pageURL, What: fmt.Sprintf(format, args...)}
}

func parseDocument(pageURL string, body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html from %s: %w", pageURL, err)
	}
	return doc, nil
}

// forEachPage fetches urls and hands each body to visit in discovery order.
// Sequential mode interleaves fetch and visit; parallel mode fetches
// everything first so visit still runs in order.
func forEachPage(
	ctx context.Context,
	getter fetcher.Getter,
	urls []string,
	concurrency int,
	visit func(i int, body []byte) error,
) error {
	if concurrency <= 1 {
		for i, u := range urls {
			resp, err := getter.Fetch(ctx, u)
			if err != nil {
				return err
			}
			if err := visit(i, resp.Body); err != nil {
				return err
			}
		}
		return nil
	}

	bodies := make([][]byte, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, u := range urls {
		g.Go(func() error {
			resp, err := getter.Fetch(gctx, u)
			if err != nil {
				return err
			}
			bodies[i] = resp.Body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, body := range bodies {
		if err := visit(i, body); err != nil {
			return err
		}
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", raw)
	}
	return base, nil
}

func joinURL(base *url.URL, segments ...string) string {
	return base.JoinPath(segments...).String()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
