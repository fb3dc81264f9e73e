package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EvRoHa/CFB-Poll-Compiler/internal/clock/system"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/config"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/fetcher"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/metrics"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/poll"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/source"
)

const coachesLanding = `<html><body>
<span class="name">Ohio State</span>
</body></html>`

const coachesOhioState = `<html><body><table>
<tr class="ballot-ranking-row"><td>Coach One</td><td>Auburn</td><td>4</td></tr>
</table></body></html>`

func coachesServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/coaches/2018/4":
			fmt.Fprint(w, coachesLanding)
		case "/coaches/2018/4/schools/ohio-state":
			fmt.Fprint(w, coachesOhioState)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL, client string) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.HTTP.Client = client
	cfg.HTTP.MaxAttempts = 2
	cfg.HTTP.BackoffBaseMs = 1
	cfg.Sources.VoterListBaseURL = baseURL
	cfg.Sources.RankTableBaseURL = baseURL
	cfg.Output.Dir = t.TempDir()
	return cfg
}

type recordingSaver struct {
	saved []poll.Identity
	err   error
}

func (s *recordingSaver) SaveBallots(_ context.Context, set *poll.BallotSet) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.saved = append(s.saved, set.Identity)
	return int64(len(poll.Flatten(set))), nil
}

func TestScrapeExportAndSave(t *testing.T) {
	t.Parallel()

	for _, client := range []string{config.ClientColly, config.ClientResty} {
		t.Run(client, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig(t, coachesServer(t).URL, client)
			saver := &recordingSaver{}
			a, err := New(context.Background(), cfg, nil, system.Fixed(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
				WithBallotSaver(saver))
			require.NoError(t, err)
			defer a.Close()

			id := poll.NewIdentity(poll.VoterList, 2018, 4)
			set, err := a.Scrape(context.Background(), id)
			require.NoError(t, err)
			entry, ok := set.Entry("Coach One")
			require.True(t, ok)
			assert.Equal(t, "Auburn", entry.AffiliatedTeam)
			assert.Equal(t, "Ohio State", entry.Rankings[3])

			uris, err := a.Export(context.Background(), set)
			require.NoError(t, err)
			require.Len(t, uris, 4)
			_, err = os.Stat(filepath.Join(cfg.Output.Dir, "2018 Week 4 Coaches Poll.json"))
			require.NoError(t, err)

			saved, err := a.SaveBallots(context.Background(), set)
			require.NoError(t, err)
			assert.True(t, saved)
			assert.Equal(t, []poll.Identity{id}, saver.saved)
		})
	}
}

func TestScrapeNotFound(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, coachesServer(t).URL, config.ClientColly)
	a, err := New(context.Background(), cfg, nil, system.New())
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Scrape(context.Background(), poll.NewIdentity(poll.VoterList, 2017, 4))
	require.Error(t, err)
	assert.ErrorIs(t, err, fetcher.ErrNotFound)
	assert.Equal(t, metrics.OutcomeNotFound, Outcome(err))
}

func TestSaveBallotsWithoutDatabase(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "https://polls.example.com", config.ClientColly)
	a, err := New(context.Background(), cfg, nil, system.New())
	require.NoError(t, err)
	defer a.Close()

	saved, err := a.SaveBallots(context.Background(), poll.NewBallotSet(poll.NewIdentity(poll.RankTable, 2018, 1)))
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestSaveBallotsError(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "https://polls.example.com", config.ClientColly)
	a, err := New(context.Background(), cfg, nil, system.New(), WithBallotSaver(&recordingSaver{err: errors.New("db down")}))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.SaveBallots(context.Background(), poll.NewBallotSet(poll.NewIdentity(poll.RankTable, 2018, 1)))
	require.ErrorContains(t, err, "db down")
}

func TestNewRequiresClock(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), config.Config{}, nil, nil)
	require.Error(t, err)
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	notFound := &fetcher.TerminalError{URL: "u", Attempts: 1, Err: &fetcher.StatusError{URL: "u", StatusCode: http.StatusNotFound}}
	assert.Equal(t, metrics.OutcomeSuccess, Outcome(nil))
	assert.Equal(t, metrics.OutcomeNotFound, Outcome(fmt.Errorf("fetch landing page: %w", notFound)))
	assert.Equal(t, metrics.OutcomeStructural, Outcome(&source.StructuralParseError{URL: "u", What: "no table"}))
	assert.Equal(t, metrics.OutcomeFailed, Outcome(errors.New("boom")))
}
