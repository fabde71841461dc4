package fetcherimpl

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/orgball2608/xhs-likes-manager/internal/browser"
	mock_browser "github.com/orgball2608/xhs-likes-manager/internal/browser/mocks"
	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/internal/fetcher"
	"github.com/orgball2608/xhs-likes-manager/internal/repositories/post"
	mock_post "github.com/orgball2608/xhs-likes-manager/internal/repositories/post/mocks"
	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var fetchTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func note(id string) browser.RawPost {
	return browser.RawPost(fmt.Sprintf(`{"note_id":%q,"display_title":"title %s","user":{"nickname":"n"}}`, id, id))
}

func notes(ids ...string) []browser.RawPost {
	out := make([]browser.RawPost, 0, len(ids))
	for _, id := range ids {
		out = append(out, note(id))
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		BaseURL: "https://www.xiaohongshu.com",
		Fetch: config.FetchConfig{
			MaxScrollsLikes:     10,
			MaxScrollsBookmarks: 10,
			NoChangeThreshold:   2,
		},
	}
}

func newTestFetcher(t *testing.T, repo post.Repository) *FetcherImpl {
	t.Helper()
	f := New(Opts{Config: testConfig(), Logger: logger.NewNop(), PostRepo: repo})
	f.now = func() time.Time { return fetchTime }
	return f
}

func newStore(t *testing.T) *post.JSONFile {
	t.Helper()
	repo := post.NewJSONFile(filepath.Join(t.TempDir(), "records.json"), post.Options{}, logger.NewNop())
	require.NoError(t, repo.Load(context.Background()))
	return repo
}

// expectFeed scripts a feed: the first page then one page per scroll; once
// the pages run out every scroll returns nothing.
func expectFeed(sess *mock_browser.MockSession, kind domain.Kind, first []browser.RawPost, pages ...[]browser.RawPost) {
	sess.EXPECT().OpenFeed(gomock.Any(), "u1", kind).Return(first, nil)
	for _, p := range pages {
		sess.EXPECT().Scroll(gomock.Any()).Return(p, nil)
	}
	sess.EXPECT().Scroll(gomock.Any()).Return(nil, nil).AnyTimes()
}

func TestFetchCreatesRecords(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sess := mock_browser.NewMockSession(ctrl)
	repo := newStore(t)
	f := newTestFetcher(t, repo)

	expectFeed(sess, domain.KindLike, notes("a", "b"), notes("b", "c"), notes("d"))

	res, err := f.Fetch(ctx, sess, "u1", domain.KindLike, fetcher.Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Found)
	assert.Equal(t, 4, res.New)
	assert.Equal(t, 0, res.Refreshed)
	// two productive scrolls then two empty ones hit the threshold
	assert.Equal(t, 4, res.Scrolls)

	recs, err := repo.List(ctx, domain.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 4)
	for _, r := range recs {
		assert.Equal(t, domain.StatusUntagged, r.Status)
		assert.Equal(t, domain.KindLike, r.Kind)
		assert.Equal(t, fetchTime, r.FirstSeen)
	}

	last, err := repo.LastFetch(ctx, domain.KindLike)
	require.NoError(t, err)
	assert.Equal(t, fetchTime, last)
}

func TestFetchIsIdempotentAndKeepsUserState(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := newStore(t)
	f := newTestFetcher(t, repo)

	first := mock_browser.NewMockSession(ctrl)
	expectFeed(first, domain.KindLike, notes("a", "b", "c"))
	_, err := f.Fetch(ctx, first, "u1", domain.KindLike, fetcher.Options{})
	require.NoError(t, err)

	rec, err := repo.Get(ctx, "b")
	require.NoError(t, err)
	rec.AddTags("AI/LLM")
	rec.Note = "keep me"
	rec.Status = domain.StatusReviewed
	require.NoError(t, repo.Upsert(ctx, rec))

	f.now = func() time.Time { return fetchTime.Add(time.Hour) }
	second := mock_browser.NewMockSession(ctrl)
	expectFeed(second, domain.KindLike, notes("a", "b", "c"))
	res, err := f.Fetch(ctx, second, "u1", domain.KindLike, fetcher.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.New)
	assert.Equal(t, 3, res.Refreshed)

	recs, err := repo.List(ctx, domain.Filter{IncludeRemoved: true})
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	got, err := repo.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"AI/LLM"}, got.Tags)
	assert.Equal(t, "keep me", got.Note)
	assert.Equal(t, domain.StatusReviewed, got.Status)
	assert.Equal(t, fetchTime, got.FirstSeen)
	assert.Equal(t, fetchTime.Add(time.Hour), got.FetchedAt)
}

func TestFetchIncrementalStopsOnKnownNotes(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := newStore(t)
	f := newTestFetcher(t, repo)

	for _, id := range []string{"b", "c", "d", "e"} {
		require.NoError(t, repo.Upsert(ctx, domain.PostRecord{ID: id, Kind: domain.KindLike, Status: domain.StatusTagged}))
	}
	require.NoError(t, repo.SetLastFetch(ctx, domain.KindLike, fetchTime.Add(-time.Hour)))

	sess := mock_browser.NewMockSession(ctrl)
	expectFeed(sess, domain.KindLike, notes("a"), notes("b"), notes("c"), notes("d"), notes("e"))

	res, err := f.Fetch(ctx, sess, "u1", domain.KindLike, fetcher.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scrolls, "two scrolls of already stored notes reach the threshold")
	assert.Equal(t, 1, res.New)
	assert.Equal(t, 2, res.Refreshed)
}

func TestFetchFullCountsSessionNovelty(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := newStore(t)
	f := newTestFetcher(t, repo)

	for _, id := range []string{"b", "c", "d", "e"} {
		require.NoError(t, repo.Upsert(ctx, domain.PostRecord{ID: id, Kind: domain.KindLike, Status: domain.StatusTagged}))
	}

	sess := mock_browser.NewMockSession(ctrl)
	expectFeed(sess, domain.KindLike, notes("a"), notes("b"), notes("c"), notes("d"), notes("e"))

	res, err := f.Fetch(ctx, sess, "u1", domain.KindLike, fetcher.Options{Full: true})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Scrolls)
	assert.Equal(t, 5, res.Found)
	assert.Equal(t, 4, res.Refreshed)
}

func TestFetchRespectsMaxScrolls(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := newStore(t)
	f := newTestFetcher(t, repo)
	f.config.Fetch.MaxScrollsBookmarks = 3

	sess := mock_browser.NewMockSession(ctrl)
	sess.EXPECT().OpenFeed(gomock.Any(), "u1", domain.KindBookmark).Return(nil, nil)
	for i := 0; i < 3; i++ {
		sess.EXPECT().Scroll(gomock.Any()).Return(notes(fmt.Sprintf("n%d", i)), nil)
	}

	res, err := f.Fetch(ctx, sess, "u1", domain.KindBookmark, fetcher.Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scrolls)
	assert.Equal(t, 3, res.New)
	assert.True(t, res.Capped)
}

func TestFetchNotesOfAnotherCollectionDoNotStopIncremental(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := newStore(t)
	f := newTestFetcher(t, repo)

	likes := mock_browser.NewMockSession(ctrl)
	expectFeed(likes, domain.KindLike, notes("a", "b", "c"))
	_, err := f.Fetch(ctx, likes, "u1", domain.KindLike, fetcher.Options{})
	require.NoError(t, err)

	// the bookmarks feed opens with notes that were also liked
	bookmarks := mock_browser.NewMockSession(ctrl)
	expectFeed(bookmarks, domain.KindBookmark, notes("a"), notes("b"), notes("c"), notes("bm1"))

	res, err := f.Fetch(ctx, bookmarks, "u1", domain.KindBookmark, fetcher.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.New)
	assert.Equal(t, 3, res.Refreshed)

	got, err := repo.Get(ctx, "bm1")
	require.NoError(t, err)
	assert.Equal(t, domain.KindBookmark, got.Kind)

	liked, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.KindLike, liked.Kind, "first sighting keeps its collection")
}

func TestFetchWithoutCompletePassUsesSessionNovelty(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := newStore(t)
	f := newTestFetcher(t, repo)
	f.config.Fetch.MaxScrollsLikes = 1

	first := mock_browser.NewMockSession(ctrl)
	first.EXPECT().OpenFeed(gomock.Any(), "u1", domain.KindLike).Return(notes("a"), nil)
	first.EXPECT().Scroll(gomock.Any()).Return(notes("b"), nil)

	res, err := f.Fetch(ctx, first, "u1", domain.KindLike, fetcher.Options{})
	require.NoError(t, err)
	assert.True(t, res.Capped)
	last, err := repo.LastFetch(ctx, domain.KindLike)
	require.NoError(t, err)
	assert.True(t, last.IsZero(), "a capped first pass is not complete")

	// the next default fetch walks through the stored region to the older notes
	f.config.Fetch.MaxScrollsLikes = 10
	second := mock_browser.NewMockSession(ctrl)
	expectFeed(second, domain.KindLike, notes("a"), notes("b"), notes("b"), notes("c"), notes("d"))

	res, err = f.Fetch(ctx, second, "u1", domain.KindLike, fetcher.Options{})
	require.NoError(t, err)
	assert.False(t, res.Capped)
	assert.Equal(t, 2, res.New)
	last, err = repo.LastFetch(ctx, domain.KindLike)
	require.NoError(t, err)
	assert.Equal(t, fetchTime, last)
}

func TestFetchSkipsMalformedNotes(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := newStore(t)
	f := newTestFetcher(t, repo)

	sess := mock_browser.NewMockSession(ctrl)
	first := []browser.RawPost{note("a"), browser.RawPost(`{"display_title":"no id"}`), browser.RawPost(`garbage`), note("b")}
	expectFeed(sess, domain.KindLike, first)

	res, err := f.Fetch(ctx, sess, "u1", domain.KindLike, fetcher.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.New)
	assert.Equal(t, 2, res.Skipped)
}

func TestFetchKeepsPartialBatchOnScrollFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := newStore(t)
	f := newTestFetcher(t, repo)

	sess := mock_browser.NewMockSession(ctrl)
	sess.EXPECT().OpenFeed(gomock.Any(), "u1", domain.KindLike).Return(notes("a", "b"), nil)
	sess.EXPECT().Scroll(gomock.Any()).Return(notes("c"), nil)
	sess.EXPECT().Scroll(gomock.Any()).Return(nil, browser.ErrNavigation)

	res, err := f.Fetch(ctx, sess, "u1", domain.KindLike, fetcher.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrNavigation)
	assert.Equal(t, 3, res.New)

	reloaded := post.NewJSONFile(repo.Path(), post.Options{}, logger.NewNop())
	require.NoError(t, reloaded.Load(ctx))
	recs, err := reloaded.List(ctx, domain.Filter{})
	require.NoError(t, err)
	assert.Len(t, recs, 3, "collected notes were checkpointed")

	last, err := reloaded.LastFetch(ctx, domain.KindLike)
	require.NoError(t, err)
	assert.True(t, last.IsZero(), "a failed batch is not a completed fetch")
}

func TestFetchOpenFeedFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_post.NewMockRepository(ctrl)
	f := newTestFetcher(t, repo)

	repo.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, nil)
	repo.EXPECT().LastFetch(gomock.Any(), domain.KindLike).Return(time.Time{}, nil)
	sess := mock_browser.NewMockSession(ctrl)
	sess.EXPECT().OpenFeed(gomock.Any(), "u1", domain.KindLike).Return(nil, browser.ErrSessionExpired)

	_, err := f.Fetch(context.Background(), sess, "u1", domain.KindLike, fetcher.Options{})
	assert.ErrorIs(t, err, browser.ErrSessionExpired)
}

func TestFetchStoreFailureAborts(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_post.NewMockRepository(ctrl)
	f := newTestFetcher(t, repo)

	boom := errors.New("disk full")
	repo.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, nil)
	repo.EXPECT().LastFetch(gomock.Any(), domain.KindLike).Return(time.Time{}, nil)
	repo.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(boom)

	sess := mock_browser.NewMockSession(ctrl)
	sess.EXPECT().OpenFeed(gomock.Any(), "u1", domain.KindLike).Return(notes("a"), nil)

	_, err := f.Fetch(context.Background(), sess, "u1", domain.KindLike, fetcher.Options{})
	assert.ErrorIs(t, err, boom)
}
