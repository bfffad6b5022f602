package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdc/internal/core"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "cdc.db")
	repo, err := NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func snapshot(t *testing.T, date, name, content string) core.Snapshot {
	t.Helper()
	d, err := core.ParseDate(date)
	require.NoError(t, err)
	return core.Snapshot{Date: d, Filename: name, Content: []byte(content)}
}

func TestSQLiteRepository_Snapshots(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	dates, err := repo.ListDates(ctx)
	require.NoError(t, err)
	assert.Empty(t, dates)

	require.NoError(t, repo.PutSnapshot(ctx, snapshot(t, "2025-02-01", "feb.csv", "b")))
	require.NoError(t, repo.PutSnapshot(ctx, snapshot(t, "2025-01-01", "jan.csv", "a")))

	dates, err = repo.ListDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-01", "2025-02-01"}, dates)

	got, err := repo.GetSnapshot(ctx, "2025-01-01")
	require.NoError(t, err)
	assert.Equal(t, "jan.csv", got.Filename)
	assert.Equal(t, []byte("a"), got.Content)
	assert.Equal(t, "2025-01-01", got.Date.String())
	assert.False(t, got.UploadedAt.IsZero())

	// Re-upload replaces the content of the same date.
	require.NoError(t, repo.PutSnapshot(ctx, snapshot(t, "2025-01-01", "jan-v2.csv", "a2")))
	got, err = repo.GetSnapshot(ctx, "2025-01-01")
	require.NoError(t, err)
	assert.Equal(t, "jan-v2.csv", got.Filename)
	assert.Equal(t, []byte("a2"), got.Content)

	_, err = repo.GetSnapshot(ctx, "2030-01-01")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.DeleteSnapshot(ctx, "2025-02-01"))
	assert.ErrorIs(t, repo.DeleteSnapshot(ctx, "2025-02-01"), ErrNotFound)

	dates, err = repo.ListDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-01"}, dates)
}

func TestSQLiteRepository_RejectsInvalidSnapshot(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.PutSnapshot(context.Background(), core.Snapshot{Date: core.NewDate(2025, 1, 1), Filename: "x.csv"})
	assert.ErrorIs(t, err, core.ErrEmptyContent)
}

func TestSQLiteRepository_ReportCache(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	_, err := repo.GetCachedReport(ctx, "2025-01-01", "2025-02-01")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.PutCachedReport(ctx, "2025-01-01", "2025-02-01", []byte(`{"v":1}`)))
	require.NoError(t, repo.PutCachedReport(ctx, "2025-01-01", "2025-02-01", []byte(`{"v":2}`)))
	require.NoError(t, repo.PutCachedReport(ctx, "2025-02-01", "2025-03-01", []byte(`{"v":3}`)))
	require.NoError(t, repo.PutCachedReport(ctx, "2025-03-01", "2025-04-01", []byte(`{"v":4}`)))

	b, err := repo.GetCachedReport(ctx, "2025-01-01", "2025-02-01")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(b))

	require.NoError(t, repo.InvalidateCachedReports(ctx, "2025-02-01"))
	_, err = repo.GetCachedReport(ctx, "2025-01-01", "2025-02-01")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetCachedReport(ctx, "2025-02-01", "2025-03-01")
	assert.ErrorIs(t, err, ErrNotFound)

	b, err = repo.GetCachedReport(ctx, "2025-03-01", "2025-04-01")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":4}`, string(b))
}

func TestSQLiteRepository_SnapshotWritesInvalidateReports(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.PutSnapshot(ctx, snapshot(t, "2025-01-01", "a.csv", "a")))
	require.NoError(t, repo.PutSnapshot(ctx, snapshot(t, "2025-02-01", "b.csv", "b")))
	require.NoError(t, repo.PutCachedReport(ctx, "2025-01-01", "2025-02-01", []byte(`{}`)))

	require.NoError(t, repo.PutSnapshot(ctx, snapshot(t, "2025-02-01", "b2.csv", "b2")))
	_, err := repo.GetCachedReport(ctx, "2025-01-01", "2025-02-01")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.PutCachedReport(ctx, "2025-01-01", "2025-02-01", []byte(`{}`)))
	require.NoError(t, repo.DeleteSnapshot(ctx, "2025-01-01"))
	_, err = repo.GetCachedReport(ctx, "2025-01-01", "2025-02-01")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSchemaVersion(t *testing.T) {
	_, path := newTestRepo(t)
	v, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), v)
}
