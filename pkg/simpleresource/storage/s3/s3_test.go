package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-resource/pkg/simpleresource"
)

func TestS3Backend_BasicConfiguration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("DefaultRegion", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", backend.config.Region)
	})

	t.Run("KeyPrefix", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			KeyPrefix:       "/upload/",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "upload/1_a.jpg", backend.objectKey("1_a.jpg"))
	})

	t.Run("NoKeyPrefix", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "1_a.jpg", backend.objectKey("1_a.jpg"))
	})
}

func TestS3Backend_ErrorClassification(t *testing.T) {
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", &types.NotFound{})))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("connection refused")))

	assert.True(t, hasErrorCode(&smithy.GenericAPIError{Code: "PreconditionFailed"}, "PreconditionFailed"))
	assert.False(t, hasErrorCode(errors.New("PreconditionFailed"), "PreconditionFailed"))
}

func TestS3Backend_WriteRejectsEmptyKey(t *testing.T) {
	backend, err := New(Config{
		Bucket:          "test-bucket",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
	})
	require.NoError(t, err)

	err = backend.Write(context.Background(), "", []byte("x"))
	assert.ErrorIs(t, err, simpleresource.ErrInvalidKey)
}

// TestS3Backend_Integration runs against an S3-compatible endpoint such as
// MinIO when TEST_S3_ENDPOINT is set.
func TestS3Backend_Integration(t *testing.T) {
	endpoint := os.Getenv("TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("TEST_S3_ENDPOINT not set")
	}

	backend, err := New(Config{
		Region:                 "us-east-1",
		Bucket:                 "simple-resource-test",
		AccessKeyID:            envOr("TEST_S3_ACCESS_KEY_ID", "minioadmin"),
		SecretAccessKey:        envOr("TEST_S3_SECRET_ACCESS_KEY", "minioadmin"),
		Endpoint:               endpoint,
		UsePathStyle:           true,
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	key := fmt.Sprintf("%d_integration.bin", time.Now().UnixNano())
	data := []byte("s3 integration payload")

	require.NoError(t, backend.Write(ctx, key, data))
	defer backend.Delete(ctx, key)

	exists, err := backend.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := backend.Open(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	_ = rc.Close()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))

	_, err = backend.Open(ctx, key+".missing")
	assert.ErrorIs(t, err, simpleresource.ErrNotFound)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
