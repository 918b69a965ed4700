package simpleresource

import (
	"context"
	"io"
)

// Service defines the main interface for the simple-resource library
type Service interface {
	// CreateResource stores the payload as a blob and records its metadata
	CreateResource(ctx context.Context, req CreateResourceRequest) (*Resource, error)

	// GetResource returns one resource by ID
	GetResource(ctx context.Context, id int64) (*Resource, error)

	// ListResources returns all resources in creation order
	ListResources(ctx context.Context) ([]*Resource, error)

	// OpenBlob streams the blob behind a storage reference
	OpenBlob(ctx context.Context, storageReference string) (io.ReadCloser, error)

	// BlobExists reports whether a blob is stored behind a storage reference
	BlobExists(ctx context.Context, storageReference string) (bool, error)
}
