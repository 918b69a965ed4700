package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-resource/pkg/simpleresource"
)

// newTestRepository connects to the database in TEST_DATABASE_URL and
// isolates the test in a schema of its own.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	schemaName := fmt.Sprintf("resource_test_%d", time.Now().UnixNano())

	admin, err := Connect(ctx, connString, "")
	require.NoError(t, err, "Failed to connect to test database")
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schemaName)
	require.NoError(t, err, "Failed to create test schema")

	pool, err := Connect(ctx, connString, schemaName)
	require.NoError(t, err)

	repo := NewWithPool(pool)
	require.NoError(t, repo.Migrate(ctx))

	t.Cleanup(func() {
		repo.Close()
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schemaName+" CASCADE")
		admin.Close()
	})
	return repo
}

func TestHandlePostgresError(t *testing.T) {
	r := &Repository{}

	err := r.handlePostgresError("insert resource", &pgconn.PgError{Code: "23505"})
	assert.Contains(t, err.Error(), "duplicate storage reference")

	err = r.handlePostgresError("insert resource", &pgconn.PgError{Code: "42P01"})
	assert.Contains(t, err.Error(), "migration required")

	cause := errors.New("connection reset")
	err = r.handlePostgresError("list resources", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "list resources")
}

func TestConnect_RequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), "", "")
	assert.Error(t, err)
}

func TestPostgresRepository_InsertGetList(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first, err := repo.Insert(ctx, "cat", "/upload/1_photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	second, err := repo.Insert(ctx, "dog", "/upload/2_photo.jpg")
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "cat", got.Title)
	assert.Equal(t, "/upload/1_photo.jpg", got.StorageReference)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}

func TestPostgresRepository_GetNotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Get(context.Background(), 12345)
	assert.ErrorIs(t, err, simpleresource.ErrNotFound)
}

func TestPostgresRepository_DuplicateReference(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Insert(ctx, "a", "/upload/1_a.png")
	require.NoError(t, err)

	_, err = repo.Insert(ctx, "b", "/upload/1_a.png")
	assert.ErrorIs(t, err, simpleresource.ErrStoreWrite)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
