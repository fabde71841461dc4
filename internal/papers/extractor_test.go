package papers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/orgball2608/xhs-likes-manager/internal/arxiv"
	"github.com/orgball2608/xhs-likes-manager/internal/arxiv/arxivimpl"
	"github.com/orgball2608/xhs-likes-manager/internal/browser"
	mock_browser "github.com/orgball2608/xhs-likes-manager/internal/browser/mocks"
	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/internal/ratelimit"
	"github.com/orgball2608/xhs-likes-manager/internal/repositories/post"
	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeArxiv struct {
	results map[string][]arxiv.Paper
	err     error
	queries []string
}

func (f *fakeArxiv) Search(ctx context.Context, query string, maxResults int) ([]arxiv.Paper, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

func testConfig() *config.Config {
	return &config.Config{PaperExtraction: config.PaperExtractionConfig{
		TriggerTag:      "AI/LLM",
		ArxivMaxResults: 3,
		MaxTitleLookups: 2,
	}}
}

func newExtractor(t *testing.T, client arxiv.Client) (*Extractor, *post.JSONFile) {
	t.Helper()
	repo := post.NewJSONFile(filepath.Join(t.TempDir(), "records.json"), post.Options{}, logger.NewNop())
	require.NoError(t, repo.Load(context.Background()))
	return New(Opts{Config: testConfig(), Logger: logger.NewNop(), PostRepo: repo, Arxiv: client}), repo
}

func aiRecord(id, title, text string) domain.PostRecord {
	return domain.PostRecord{ID: id, Kind: domain.KindLike, Title: title, Text: text, Tags: []string{"AI/LLM"}, Status: domain.StatusTagged}
}

func TestRegexIDSkipsLookup(t *testing.T) {
	client := &fakeArxiv{}
	ex, repo := newExtractor(t, client)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, aiRecord("1", "好文推荐", "arxiv 2401.12345v2 《Some Long Paper Title》")))

	res, err := ex.Run(ctx, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Extracted)
	assert.Empty(t, client.queries, "an id in the text means no API call")

	rec, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.ExtractionExtracted, rec.Extraction)
	require.NotNil(t, rec.ExtractedAt)
	assert.Equal(t, []domain.PaperRef{
		{ArxivID: "2401.12345", Source: domain.PaperSourceRegex},
		{Title: "Some Long Paper Title", Source: domain.PaperSourceRegex},
	}, rec.PaperRefs)
	assert.Equal(t, "https://arxiv.org/abs/2401.12345", rec.PaperRefs[0].Link())
}

func TestTitleLookup(t *testing.T) {
	client := &fakeArxiv{results: map[string][]arxiv.Paper{
		"Attention Is All You Need": {{ID: "1706.03762", Title: "Attention Is All You Need"}},
	}}
	ex, repo := newExtractor(t, client)
	ctx := context.Background()
	text := "《Attention Is All You Need》《Unknown Paper Name》《Third Title Here》"
	require.NoError(t, repo.Upsert(ctx, aiRecord("1", "论文", text)))

	res, err := ex.Run(ctx, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Lookups, "lookups are capped")
	assert.Equal(t, []string{"Attention Is All You Need", "Unknown Paper Name"}, client.queries)

	rec, _ := repo.Get(ctx, "1")
	assert.Equal(t, []domain.PaperRef{
		{ArxivID: "1706.03762", Title: "Attention Is All You Need", Source: domain.PaperSourceAPILookup},
		{Title: "Unknown Paper Name", Source: domain.PaperSourceRegex},
		{Title: "Third Title Here", Source: domain.PaperSourceRegex},
	}, rec.PaperRefs)
}

func TestLookupFailureKeepsTitle(t *testing.T) {
	client := &fakeArxiv{err: arxiv.ErrLookup}
	ex, repo := newExtractor(t, client)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, aiRecord("1", "x", "《A Paper We Cannot Find》")))

	res, err := ex.Run(ctx, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.LookupFailures)

	rec, _ := repo.Get(ctx, "1")
	assert.Equal(t, domain.ExtractionExtracted, rec.Extraction)
	assert.Equal(t, []domain.PaperRef{{Title: "A Paper We Cannot Find", Source: domain.PaperSourceRegex}}, rec.PaperRefs)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, domain.ExtractionNeedsVision, classify("今天的论文", nil, nil, nil, 4))
	assert.Equal(t, domain.ExtractionNoIDFound, classify("今天的论文", nil, nil, nil, 0))
	assert.Equal(t, domain.ExtractionInsight, classify("一些感想", nil, nil, nil, 3))
}

func TestCandidates(t *testing.T) {
	ex, repo := newExtractor(t, &fakeArxiv{})
	ctx := context.Background()

	done := aiRecord("done", "x", "")
	done.Extraction = domain.ExtractionInsight
	removed := aiRecord("gone", "x", "")
	removed.MarkRemoved(time.Now())
	other := domain.PostRecord{ID: "other", Tags: []string{"美食"}, Status: domain.StatusTagged}

	for _, r := range []domain.PostRecord{aiRecord("todo", "x", ""), done, removed, other} {
		require.NoError(t, repo.Upsert(ctx, r))
	}

	recs, skipped, err := ex.Candidates(ctx, Options{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "todo", recs[0].ID)
	assert.Equal(t, 1, skipped)

	recs, _, err = ex.Candidates(ctx, Options{Force: true})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestDetailTextFromBrowser(t *testing.T) {
	ctrl := gomock.NewController(t)
	sess := mock_browser.NewMockSession(ctrl)
	ex, repo := newExtractor(t, &fakeArxiv{})
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, aiRecord("1", "看图", "")))
	require.NoError(t, repo.Upsert(ctx, aiRecord("2", "另一篇", "")))

	sess.EXPECT().PostDetail(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, rec domain.PostRecord) (browser.Detail, error) {
			if rec.ID == "1" {
				return browser.Detail{Text: "论文分享", ImageCount: 6}, nil
			}
			return browser.Detail{}, browser.ErrNavigation
		}).Times(2)

	res, err := ex.Run(ctx, sess, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.DetailFailures)
	assert.Equal(t, 2, res.Processed)

	r1, _ := repo.Get(ctx, "1")
	assert.Equal(t, "论文分享", r1.Text)
	assert.Equal(t, domain.ExtractionNeedsVision, r1.Extraction)

	r2, _ := repo.Get(ctx, "2")
	assert.Equal(t, domain.ExtractionInsight, r2.Extraction)
}

func TestSessionExpiredAborts(t *testing.T) {
	ctrl := gomock.NewController(t)
	sess := mock_browser.NewMockSession(ctrl)
	ex, repo := newExtractor(t, &fakeArxiv{})
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, aiRecord("1", "x", "")))

	sess.EXPECT().PostDetail(gomock.Any(), gomock.Any()).Return(browser.Detail{}, browser.ErrSessionExpired)

	_, err := ex.Run(ctx, sess, Options{})
	assert.True(t, errors.Is(err, browser.ErrSessionExpired))
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return nil
}

func TestLookupsAreSpacedAcrossRecords(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	gate := ratelimit.NewGate(3*time.Second, ratelimit.WithClock(clock.now, clock.sleep))

	var (
		mu    sync.Mutex
		stamp []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamp = append(stamp, clock.now())
		mu.Unlock()
		_, _ = w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	}))
	defer srv.Close()

	client := arxivimpl.NewClient(srv.URL, srv.Client(), gate, logger.NewNop())
	ex, repo := newExtractor(t, client)
	ctx := context.Background()
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, repo.Upsert(ctx, aiRecord(id, "x", "《First Paper Title》 《Second Paper Title》")))
	}

	res, err := ex.Run(ctx, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Lookups)

	require.Len(t, stamp, 6)
	for i := 1; i < len(stamp); i++ {
		assert.GreaterOrEqual(t, stamp[i].Sub(stamp[i-1]), 3*time.Second)
	}
}
