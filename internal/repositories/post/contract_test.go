package post

import (
	"context"
	"testing"
	"time"

	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seenAt = time.Date(2026, 3, 1, 8, 30, 0, 123456789, time.UTC)

func sampleRecord(id string, kind domain.Kind) domain.PostRecord {
	return domain.PostRecord{
		ID:        id,
		Kind:      kind,
		URL:       "https://www.xiaohongshu.com/explore/" + id,
		Title:     "大模型 agent 入门 " + id,
		Author:    "alice",
		AuthorID:  "u1",
		FirstSeen: seenAt,
		FetchedAt: seenAt,
		Status:    domain.StatusUntagged,
	}
}

// testRepositoryContract runs the behaviour every backend must share.
func testRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	t.Run("get missing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("upsert replaces by id", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		rec := sampleRecord("n1", domain.KindLike)
		require.NoError(t, repo.Upsert(ctx, rec))

		extracted := seenAt.Add(time.Hour)
		rec.Tags = []string{"AI/LLM"}
		rec.Status = domain.StatusTagged
		rec.Note = "论文"
		rec.PaperRefs = []domain.PaperRef{{ArxivID: "2401.12345", Source: domain.PaperSourceRegex}}
		rec.Extraction = domain.ExtractionExtracted
		rec.ExtractedAt = &extracted
		require.NoError(t, repo.Upsert(ctx, rec))
		require.NoError(t, repo.Save(ctx))

		got, err := repo.Get(ctx, "n1")
		require.NoError(t, err)
		assert.Equal(t, rec.Tags, got.Tags)
		assert.Equal(t, domain.StatusTagged, got.Status)
		assert.Equal(t, "论文", got.Note)
		assert.Equal(t, rec.PaperRefs, got.PaperRefs)
		require.NotNil(t, got.ExtractedAt)
		assert.True(t, extracted.Equal(*got.ExtractedAt))
		assert.True(t, seenAt.Equal(got.FirstSeen))
		assert.Nil(t, got.RemovedAt)

		all, err := repo.List(ctx, domain.Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("rejects empty id", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.Upsert(context.Background(), domain.PostRecord{Title: "x"})
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("list filters", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		a := sampleRecord("a", domain.KindLike)
		a.Tags = []string{"AI/LLM"}
		a.Status = domain.StatusTagged
		b := sampleRecord("b", domain.KindBookmark)
		b.FirstSeen = seenAt.Add(time.Minute)
		c := sampleRecord("c", domain.KindLike)
		c.FirstSeen = seenAt.Add(2 * time.Minute)
		c.MarkRemoved(seenAt)

		for _, r := range []domain.PostRecord{a, b, c} {
			require.NoError(t, repo.Upsert(ctx, r))
		}

		ids := func(f domain.Filter) []string {
			recs, err := repo.List(ctx, f)
			require.NoError(t, err)
			var out []string
			for _, r := range recs {
				out = append(out, r.ID)
			}
			return out
		}

		assert.Equal(t, []string{"a", "b"}, ids(domain.Filter{}))
		assert.Equal(t, []string{"a", "b", "c"}, ids(domain.Filter{IncludeRemoved: true}))
		assert.Equal(t, []string{"a"}, ids(domain.Filter{Kind: domain.KindLike}))
		assert.Equal(t, []string{"a"}, ids(domain.Filter{Tag: "AI/LLM"}))
		assert.Equal(t, []string{"c"}, ids(domain.Filter{Statuses: []domain.Status{domain.StatusRemoved}}))
	})

	t.Run("last fetch", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		at, err := repo.LastFetch(ctx, domain.KindLike)
		require.NoError(t, err)
		assert.True(t, at.IsZero())

		require.NoError(t, repo.SetLastFetch(ctx, domain.KindLike, seenAt))
		require.NoError(t, repo.SetLastFetch(ctx, domain.KindLike, seenAt.Add(time.Hour)))

		at, err = repo.LastFetch(ctx, domain.KindLike)
		require.NoError(t, err)
		assert.True(t, seenAt.Add(time.Hour).Equal(at))

		at, err = repo.LastFetch(ctx, domain.KindBookmark)
		require.NoError(t, err)
		assert.True(t, at.IsZero())
	})
}
