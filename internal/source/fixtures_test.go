package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/EvRoHa/CFB-Poll-Compiler/internal/fetcher"
)

const testBase = "https://polls.example.com"

const rankTableLanding = `<html><body>
<div id="poll-released">Poll released Sep 10</div>
<div class="voter-menu filter-menu clearfix">
  <a href="/voter/a">Voter A</a>
  <a href="voter/b"> Voter
     B </a>
</div>
</body></html>`

const rankTableVoterA = `<html><body><table>
<tr><th>Rank</th><th>Team</th></tr>
<tr class="row-2"><td>2</td><td>Team Y (3)</td></tr>
<tr class="row-1"><td>1</td><td>Team X</td></tr>
</table></body></html>`

const rankTableVoterB = `<html><body><table>
<tr><th>Rank</th><th>Team</th></tr>
</table></body></html>`

const voterListLanding = `<html><body>
<ul>
  <li><span class="name">Ohio State</span></li>
  <li><span class="name">Alabama</span></li>
  <li><span class="name">Ohio State</span></li>
</ul>
</body></html>`

const voterListOhioState = `<html><body><table>
<tr class="ballot-ranking-row odd"><td>Coach One</td><td>Auburn</td><td>2</td></tr>
<tr class="ballot-ranking-row even"><td>Coach Two</td><td>Clemson</td><td>1</td></tr>
</table></body></html>`

const voterListAlabama = `<html><body><table>
<tr class="ballot-ranking-row odd"><td>Coach Two</td><td>Georgia</td><td>3</td></tr>
<tr class="ballot-ranking-row even"><td>Coach One</td><td>Auburn</td><td>1</td></tr>
<tr class="ballot-ranking-row odd"><td>Coach Three</td><td>Iowa</td><td>25</td></tr>
</table></body></html>`

// fakeGetter serves canned bodies keyed by URL path.
type fakeGetter struct {
	mu     sync.Mutex
	pages  map[string]string
	status map[string]int
	calls  []string
}

func newFakeGetter(pages map[string]string) *fakeGetter {
	return &fakeGetter{pages: pages, status: map[string]int{}}
}

func (g *fakeGetter) Fetch(_ context.Context, raw string) (fetcher.Response, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return fetcher.Response{}, err
	}
	g.mu.Lock()
	g.calls = append(g.calls, u.Path)
	g.mu.Unlock()

	if code, ok := g.status[u.Path]; ok {
		return fetcher.Response{}, &fetcher.TerminalError{
			URL:      raw,
			Attempts: 1,
			Err:      &fetcher.StatusError{URL: raw, StatusCode: code},
		}
	}
	body, ok := g.pages[u.Path]
	if !ok {
		return fetcher.Response{}, &fetcher.TerminalError{
			URL:      raw,
			Attempts: 1,
			Err:      &fetcher.StatusError{URL: raw, StatusCode: http.StatusNotFound},
		}
	}
	return fetcher.Response{URL: raw, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func (g *fakeGetter) called(path string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.calls {
		if c == path {
			return true
		}
	}
	return false
}

// rankTablePages serves the landing page at /poll/2019/3; Voter B's link is
// relative to it.
func rankTablePages() map[string]string {
	return map[string]string{
		"/poll/2019/3":       rankTableLanding,
		"/voter/a":           rankTableVoterA,
		"/poll/2019/voter/b": rankTableVoterB,
	}
}

func voterListPages(year, week int) map[string]string {
	landing := fmt.Sprintf("/coaches/%d/%d", year, week)
	return map[string]string{
		landing:                         voterListLanding,
		landing + "/schools/ohio-state": voterListOhioState,
		landing + "/schools/alabama":    voterListAlabama,
	}
}
