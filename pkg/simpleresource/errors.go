package simpleresource

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrInvalidInput indicates a missing or malformed request field
	ErrInvalidInput = errors.New("invalid input")

	// ErrRead indicates the upload payload could not be read
	ErrRead = errors.New("payload read failed")

	// ErrStorage indicates the blob could not be persisted
	ErrStorage = errors.New("blob storage failed")

	// ErrStoreWrite indicates the resource record could not be committed
	ErrStoreWrite = errors.New("resource record commit failed")

	// ErrNotFound indicates a resource or blob was not found
	ErrNotFound = errors.New("resource not found")

	// ErrBlobExists indicates a blob already exists under the generated key
	ErrBlobExists = errors.New("blob already exists")

	// ErrInvalidKey indicates a storage key that is empty or escapes the storage root
	ErrInvalidKey = errors.New("invalid storage key")
)

// StorageError represents an error related to blob storage operations.
// It matches ErrStorage with errors.Is.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// StoreError represents a failed write against the metadata repository.
// It matches ErrStoreWrite with errors.Is.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreWrite
}

// ValidationError reports which request field failed validation.
// It matches ErrInvalidInput with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidInput, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
