package memory_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-resource/pkg/simpleresource"
	memorystorage "github.com/tendant/simple-resource/pkg/simpleresource/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	testKey := "1700000000000_test.jpg"
	testData := []byte("Hello, World! This is test data.")

	t.Run("Write", func(t *testing.T) {
		err := backend.Write(ctx, testKey, testData)
		assert.NoError(t, err)
		assert.Equal(t, 1, backend.Len())
	})

	t.Run("WriteCopiesBuffer", func(t *testing.T) {
		buf := []byte("mutable")
		require.NoError(t, backend.Write(ctx, "copy.bin", buf))
		buf[0] = 'X'

		rc, err := backend.Open(ctx, "copy.bin")
		require.NoError(t, err)
		defer rc.Close()
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "mutable", string(got))
	})

	t.Run("Open", func(t *testing.T) {
		rc, err := backend.Open(ctx, testKey)
		require.NoError(t, err)
		defer rc.Close()

		got, err := io.ReadAll(rc)
		assert.NoError(t, err)
		assert.Equal(t, testData, got)
	})

	t.Run("NoOverwrite", func(t *testing.T) {
		err := backend.Write(ctx, testKey, []byte("other"))
		assert.ErrorIs(t, err, simpleresource.ErrBlobExists)
	})

	t.Run("EmptyKey", func(t *testing.T) {
		err := backend.Write(ctx, "", []byte("x"))
		assert.ErrorIs(t, err, simpleresource.ErrInvalidKey)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, testKey))

		exists, err := backend.Exists(ctx, testKey)
		assert.NoError(t, err)
		assert.False(t, exists)

		_, err = backend.Open(ctx, testKey)
		assert.ErrorIs(t, err, simpleresource.ErrNotFound)

		err = backend.Delete(ctx, testKey)
		assert.ErrorIs(t, err, simpleresource.ErrNotFound)
	})
}
