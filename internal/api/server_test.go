package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/EvRoHa/CFB-Poll-Compiler/internal/fetcher"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/poll"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/source"
)

func sampleSet(id poll.Identity) *poll.BallotSet {
	set := poll.NewBallotSet(id)
	b := poll.NewBallot(id.Type.Sentinel())
	b[0] = "Alabama"
	_ = set.Add(poll.Entry{Voter: "Voter A", AffiliatedTeam: "Auburn", Rankings: b})
	return set
}

type fakeScraper struct {
	err  error
	seen []poll.Identity
}

func (f *fakeScraper) scrape(_ context.Context, id poll.Identity) (*poll.BallotSet, error) {
	f.seen = append(f.seen, id)
	if f.err != nil {
		return nil, f.err
	}
	return sampleSet(id), nil
}

func serve(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	s := NewServer((&fakeScraper{}).scrape, 0, nil)
	rec := serve(t, s, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok"`)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	s := NewServer((&fakeScraper{}).scrape, 0, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := NewServer((&fakeScraper{}).scrape, 0, nil)
	serve(t, s, "/healthz")
	rec := serve(t, s, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "pollc_http_requests_total")
}

func TestGetPollFormats(t *testing.T) {
	t.Parallel()

	cases := []struct {
		query       string
		contentType string
		contains    string
	}{
		{"", "application/json", `"voters"`},
		{"?format=json", "application/json", `"Alabama"`},
		{"?format=flat", "text/csv", "Date,Voter,Rank,Team"},
		{"?format=table", "text/csv", "Rank,Voter A"},
		{"?format=transposed", "text/csv", "Voter,1,2,3"},
	}
	for _, tc := range cases {
		t.Run("format"+tc.query, func(t *testing.T) {
			t.Parallel()

			scraper := &fakeScraper{}
			s := NewServer(scraper.scrape, time.Minute, nil)
			rec := serve(t, s, "/v1/polls/ap/2018/3"+tc.query)

			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, tc.contentType, rec.Header().Get("Content-Type"))
			require.Contains(t, rec.Body.String(), tc.contains)
			require.Equal(t, []poll.Identity{poll.NewIdentity(poll.RankTable, 2018, 3)}, scraper.seen)
		})
	}
}

func TestGetPollCoachesTable(t *testing.T) {
	t.Parallel()

	s := NewServer((&fakeScraper{}).scrape, 0, nil)
	rec := serve(t, s, "/v1/polls/coaches/2018/4?format=table")

	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Equal(t, "Rank,Voter A", lines[0])
	require.Equal(t, "Team,Auburn", lines[1])
	require.Equal(t, "1,Alabama", lines[2])
}

func TestGetPollBadRequests(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{}
	s := NewServer(scraper.scrape, 0, nil)
	for _, target := range []string{
		"/v1/polls/espn/2018/3",
		"/v1/polls/ap/twenty/3",
		"/v1/polls/ap/2018/three",
		"/v1/polls/ap/2018/3?format=xml",
	} {
		rec := serve(t, s, target)
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	require.Empty(t, scraper.seen)
}

func TestGetPollErrorMapping(t *testing.T) {
	t.Parallel()

	notFound := &fetcher.TerminalError{
		URL:      "https://polls.example.com/poll/2018/3",
		Attempts: 1,
		Err:      &fetcher.StatusError{URL: "https://polls.example.com/poll/2018/3", StatusCode: http.StatusNotFound},
	}
	cases := map[string]struct {
		err  error
		want int
	}{
		"not found":  {fmt.Errorf("fetch landing page: %w", notFound), http.StatusNotFound},
		"structural": {&source.StructuralParseError{URL: "u", What: "no table"}, http.StatusBadGateway},
		"exhausted": {&fetcher.TerminalError{URL: "u", Attempts: 10, Err: &fetcher.TransientError{
			URL: "u", Err: errors.New("connection refused"),
		}}, http.StatusBadGateway},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := NewServer((&fakeScraper{err: tc.err}).scrape, 0, nil)
			rec := serve(t, s, "/v1/polls/ap/2018/3")
			require.Equal(t, tc.want, rec.Code)
			require.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := NewServer(func(context.Context, poll.Identity) (*poll.BallotSet, error) {
		panic("boom")
	}, 0, nil)
	rec := serve(t, s, "/v1/polls/ap/2018/3")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}

func TestScrapeTimeoutIsApplied(t *testing.T) {
	t.Parallel()

	s := NewServer(func(ctx context.Context, _ poll.Identity) (*poll.BallotSet, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, 10*time.Millisecond, nil)
	rec := serve(t, s, "/v1/polls/coaches/2018/3")

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "deadline exceeded")
}
