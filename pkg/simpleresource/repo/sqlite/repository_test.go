package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-resource/pkg/simpleresource"
	"github.com/tendant/simple-resource/pkg/simpleresource/repo/sqlite"
)

func newTestRepository(t *testing.T) *sqlite.Repository {
	t.Helper()

	repo, err := sqlite.Open("file:" + filepath.Join(t.TempDir(), "resources.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func TestSQLiteRepository_InsertGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.Insert(ctx, "cat", "/upload/1_photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "cat", created.Title)
	assert.Equal(t, "/upload/1_photo.jpg", created.StorageReference)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Title, got.Title)
	assert.Equal(t, created.StorageReference, got.StorageReference)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, created.UpdatedAt.Equal(got.UpdatedAt))
}

func TestSQLiteRepository_GetNotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Get(context.Background(), 99)
	assert.ErrorIs(t, err, simpleresource.ErrNotFound)
}

func TestSQLiteRepository_ListAscending(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	for i := 0; i < 3; i++ {
		_, err := repo.Insert(ctx, fmt.Sprintf("title-%d", i), fmt.Sprintf("/upload/%d_a.png", i))
		require.NoError(t, err)
	}

	list, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, r := range list {
		assert.Equal(t, int64(i+1), r.ID)
		assert.Equal(t, fmt.Sprintf("title-%d", i), r.Title)
	}
}

func TestSQLiteRepository_DuplicateReferenceRollsBack(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Insert(ctx, "a", "/upload/1_a.png")
	require.NoError(t, err)

	_, err = repo.Insert(ctx, "b", "/upload/1_a.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, simpleresource.ErrStoreWrite)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSQLiteRepository_InsertWithoutSchema(t *testing.T) {
	repo, err := sqlite.Open("file:" + filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.Insert(context.Background(), "a", "/upload/1_a.png")
	assert.ErrorIs(t, err, simpleresource.ErrStoreWrite)
}

func TestSQLiteRepository_MigrateIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	assert.NoError(t, repo.Migrate(context.Background()))
}

func TestSQLiteRepository_InMemory(t *testing.T) {
	repo, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer repo.Close()
	require.NoError(t, repo.Migrate(context.Background()))

	_, err = repo.Insert(context.Background(), "a", "/upload/1_a.png")
	require.NoError(t, err)

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSQLiteRepository_ConcurrentInsert(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Insert(ctx, "t", fmt.Sprintf("/upload/%d_a.png", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, n)
}
