package arxivimpl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/orgball2608/xhs-likes-manager/internal/arxiv"
	"github.com/orgball2608/xhs-likes-manager/internal/ratelimit"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	"github.com/orgball2608/xhs-likes-manager/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title type="html">ArXiv Query: search_query=all:grpo</title>
  <id>http://arxiv.org/api/abc</id>
  <entry>
    <id>http://arxiv.org/abs/2402.03300v3</id>
    <title>DeepSeekMath: Pushing the Limits of
      Mathematical Reasoning</title>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2501.12948v1</id>
    <title>DeepSeek-R1</title>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/hep-th/9901001v1</id>
    <title>Old style</title>
  </entry>
</feed>`

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc, gate *ratelimit.Gate) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	if gate == nil {
		gate = ratelimit.NewGate(0)
	}
	c := NewClient(srv.URL, srv.Client(), gate, logger.NewNop())
	c.retry = retry.Policy{Retries: 2, Initial: time.Millisecond, Max: time.Millisecond, Factor: 1}
	return c
}

func TestSearchParsesFeed(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(feedXML))
	}, nil)

	papers, err := c.Search(context.Background(), "group relative policy", 3)
	require.NoError(t, err)
	assert.Equal(t, []arxiv.Paper{
		{ID: "2402.03300", Title: "DeepSeekMath: Pushing the Limits of Mathematical Reasoning"},
		{ID: "2501.12948", Title: "DeepSeek-R1"},
		{ID: "hep-th/9901001", Title: "Old style"},
	}, papers)
	assert.Contains(t, gotQuery, "search_query=all%3Agroup+relative+policy")
	assert.Contains(t, gotQuery, "max_results=3")
}

func TestSearchTruncatesToMaxResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedXML))
	}, nil)

	papers, err := c.Search(context.Background(), "x", 1)
	require.NoError(t, err)
	assert.Len(t, papers, 1)
}

func TestSearchRetriesServerErrors(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(feedXML))
	}, nil)

	papers, err := c.Search(context.Background(), "x", 3)
	require.NoError(t, err)
	assert.Len(t, papers, 3)
	assert.Equal(t, 3, calls)
}

func TestSearchDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}, nil)

	_, err := c.Search(context.Background(), "x", 3)
	assert.ErrorIs(t, err, arxiv.ErrLookup)
	assert.Equal(t, 1, calls)
}

func TestSearchBadXML(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<feed><entry>"))
	}, nil)

	_, err := c.Search(context.Background(), "x", 3)
	assert.ErrorIs(t, err, arxiv.ErrLookup)
}

func TestEveryAttemptPassesTheGate(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	gate := ratelimit.NewGate(time.Second, ratelimit.WithClock(clock.now, clock.sleep))

	var (
		mu    sync.Mutex
		stamp []time.Time
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamp = append(stamp, clock.now())
		n := len(stamp)
		mu.Unlock()
		if n == 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(feedXML))
	}, gate)

	for i := 0; i < 3; i++ {
		_, err := c.Search(context.Background(), "q", 3)
		require.NoError(t, err)
	}

	require.Len(t, stamp, 4, "three searches plus one retry")
	for i := 1; i < len(stamp); i++ {
		assert.GreaterOrEqual(t, stamp[i].Sub(stamp[i-1]), time.Second)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}, nil)
	papers, err := c.Search(context.Background(), "  ", 3)
	require.NoError(t, err)
	assert.Empty(t, papers)
}
