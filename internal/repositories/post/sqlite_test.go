package post

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/orgball2608/xhs-likes-manager/internal/db"
	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteRepo(t *testing.T, path string) *SQLite {
	t.Helper()
	conn, err := db.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewSQLite(conn, logger.NewNop())
}

func TestSQLiteContract(t *testing.T) {
	testRepositoryContract(t, func(t *testing.T) Repository {
		return newSQLiteRepo(t, filepath.Join(t.TempDir(), "records.db"))
	})
}

func TestSQLiteReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "records.db")

	conn, err := db.OpenSQLite(ctx, path)
	require.NoError(t, err)
	repo := NewSQLite(conn, logger.NewNop())
	rec := sampleRecord("n1", domain.KindLike)
	rec.MarkUnliked(seenAt)
	require.NoError(t, repo.Upsert(ctx, rec))
	require.NoError(t, conn.Close())

	reopened := newSQLiteRepo(t, path)
	got, err := reopened.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRemoved, got.Status)
	require.NotNil(t, got.UnlikedAt)
	assert.True(t, seenAt.Equal(*got.UnlikedAt))
}
