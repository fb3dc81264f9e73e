package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/EvRoHa/CFB-Poll-Compiler/internal/config"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/poll"
)

type fakeApp struct {
	cfg       config.Config
	scrapeErr error
	scraped   []poll.Identity
	exported  int
	saved     int
	closed    bool
}

func (f *fakeApp) Scrape(_ context.Context, id poll.Identity) (*poll.BallotSet, error) {
	f.scraped = append(f.scraped, id)
	if f.scrapeErr != nil {
		return nil, f.scrapeErr
	}
	set := poll.NewBallotSet(id)
	b := poll.NewBallot(id.Type.Sentinel())
	b[0] = "Alabama"
	if err := set.Add(poll.Entry{Voter: "Voter A", AffiliatedTeam: "Auburn", Rankings: b}); err != nil {
		return nil, err
	}
	return set, nil
}

func (f *fakeApp) Export(_ context.Context, set *poll.BallotSet) ([]string, error) {
	f.exported++
	return []string{"memory://" + set.Identity.String() + ".json"}, nil
}

func (f *fakeApp) SaveBallots(context.Context, *poll.BallotSet) (bool, error) {
	f.saved++
	return true, nil
}

func (f *fakeApp) Close() { f.closed = true }

// withFakeApp swaps the factory; tests using it must not run in parallel.
func withFakeApp(t *testing.T, fake *fakeApp) {
	t.Helper()
	orig := newApp
	newApp = func(_ context.Context, cfg config.Config, _ *zap.Logger) (App, error) {
		fake.cfg = cfg
		return fake, nil
	}
	t.Cleanup(func() { newApp = orig })
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestScrapeCommandPrintsTable(t *testing.T) {
	fake := &fakeApp{}
	withFakeApp(t, fake)
	out := t.TempDir()

	stdout, stderr, err := execute(t, "scrape", "--poll", "ap", "--year", "2018", "--week", "3", "--out", out, "--print")
	require.NoError(t, err)

	require.Equal(t, []poll.Identity{poll.NewIdentity(poll.RankTable, 2018, 3)}, fake.scraped)
	require.Equal(t, 1, fake.exported)
	require.Equal(t, 1, fake.saved)
	require.True(t, fake.closed)
	require.Equal(t, out, fake.cfg.Output.Dir)
	require.Contains(t, stderr, "wrote memory://2018 Week 3 AP Poll.json")
	require.Contains(t, stdout, "Alabama")
	require.Contains(t, stdout, "unranked")
}

func TestScrapeCommandClampsWeek(t *testing.T) {
	fake := &fakeApp{}
	withFakeApp(t, fake)

	_, _, err := execute(t, "scrape", "--poll", "coaches", "--year", "2018", "--week", "22")
	require.NoError(t, err)
	require.Equal(t, []poll.Identity{poll.NewIdentity(poll.VoterList, 2018, 1)}, fake.scraped)
}

func TestScrapeCommandRejectsUnknownPoll(t *testing.T) {
	fake := &fakeApp{}
	withFakeApp(t, fake)

	_, _, err := execute(t, "scrape", "--poll", "espn", "--year", "2018")
	require.ErrorIs(t, err, poll.ErrUnknownPollType)
	require.Empty(t, fake.scraped)
}

func TestScrapeCommandPropagatesScrapeError(t *testing.T) {
	fake := &fakeApp{scrapeErr: errors.New("upstream down")}
	withFakeApp(t, fake)

	_, _, err := execute(t, "scrape", "--poll", "ap", "--year", "2018")
	require.ErrorContains(t, err, "upstream down")
	require.True(t, fake.closed)
	require.Zero(t, fake.exported)
	require.Zero(t, fake.saved)
}

func TestScrapeCommandRequiresFlags(t *testing.T) {
	fake := &fakeApp{}
	withFakeApp(t, fake)

	_, _, err := execute(t, "scrape", "--year", "2018")
	require.Error(t, err)
}

func TestPrintTableTransposed(t *testing.T) {
	t.Parallel()

	set := poll.NewBallotSet(poll.NewIdentity(poll.VoterList, 2018, 4))
	b := poll.NewBallot(poll.EmptyMarker)
	b[1] = "Clemson"
	require.NoError(t, set.Add(poll.Entry{Voter: "Coach One", AffiliatedTeam: "Auburn", Rankings: b}))

	var buf bytes.Buffer
	printTable(&buf, poll.RenderTable(set, true))
	require.Contains(t, buf.String(), "Coach One")
	require.Contains(t, buf.String(), "Clemson")
	require.Contains(t, buf.String(), "Auburn")
}
