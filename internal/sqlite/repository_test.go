package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"postharvest/internal/domain"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSaveCollectionAndCount(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	col := domain.NewCollection()
	col.Append(domain.Record{User: "alice", Date: "2024-01-01-10:00:00", PostText: "hello", LikeCount: 3})
	col.Append(domain.Record{User: "bob", Date: "2024-01-01-09:00:00", PostText: "world"})

	require.NoError(t, repo.SaveCollection(ctx, col))

	n, err := repo.CountPosts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestSaveCollectionUpsertsByIdentity(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := domain.NewCollection()
	first.Append(domain.Record{User: "alice", Date: "2024-01-01-10:00:00", PostText: "hello", LikeCount: 3})
	require.NoError(t, repo.SaveCollection(ctx, first))

	// Same identity, fresher counters.
	second := domain.NewCollection()
	second.Append(domain.Record{User: "alice", Date: "2024-01-01-10:00:00", PostText: "hello", LikeCount: 9})
	require.NoError(t, repo.SaveCollection(ctx, second))

	n, err := repo.CountPosts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	var likes int
	err = repo.db.QueryRowContext(ctx, `SELECT like_count FROM posts`).Scan(&likes)
	require.NoError(t, err)
	require.Equal(t, 9, likes)
}

func TestSaveEmptyCollection(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveCollection(ctx, domain.NewCollection()))

	n, err := repo.CountPosts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}
