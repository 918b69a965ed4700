package simpleresource

import (
	"context"
	"io"
)

// BlobStore defines the interface for blob storage backends
type BlobStore interface {
	// Write persists data under key. Either the whole buffer is stored or
	// an error is returned and nothing is readable under key.
	Write(ctx context.Context, key string, data []byte) error

	// Open returns a reader for the blob stored under key
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether a blob is stored under key
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the blob stored under key
	Delete(ctx context.Context, key string) error
}

// Repository defines the interface for resource record persistence.
// Every call acquires and releases its own session.
type Repository interface {
	// Insert stores a new record in its own transaction and returns it with
	// the store-assigned ID and timestamps populated.
	Insert(ctx context.Context, title, storageReference string) (*Resource, error)

	// Get returns the record with the given ID or ErrNotFound
	Get(ctx context.Context, id int64) (*Resource, error)

	// List returns every record in ascending ID order
	List(ctx context.Context) ([]*Resource, error)
}

// KeyGenerator derives a unique storage key from an uploaded file name
type KeyGenerator interface {
	GenerateKey(originalName string) string
}

// EventSink defines the interface for event handling
type EventSink interface {
	// ResourceCreated is fired after a resource record is committed
	ResourceCreated(ctx context.Context, resource *Resource) error
}
