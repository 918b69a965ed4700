package simpleresource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-playground/validator"
)

// DefaultReferencePrefix is prepended to storage keys to form storage references
const DefaultReferencePrefix = "/upload"

// service implements the Service interface
type service struct {
	repository      Repository
	blobStore       BlobStore
	backendName     string
	keyGenerator    KeyGenerator
	eventSink       EventSink
	logger          *slog.Logger
	validate        *validator.Validate
	referencePrefix string
	maxPayloadBytes int64
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob storage backend and the name used in errors and logs
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		s.backendName = name
		s.blobStore = store
	}
}

// WithKeyGenerator sets the storage key generator
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(s *service) {
		s.keyGenerator = gen
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger used by the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithReferencePrefix sets the prefix joined with a storage key to form the
// storage reference kept on each record.
func WithReferencePrefix(prefix string) Option {
	return func(s *service) {
		s.referencePrefix = strings.TrimSuffix(prefix, "/")
	}
}

// WithMaxPayloadBytes limits the payload size accepted by CreateResource.
// Zero disables the limit.
func WithMaxPayloadBytes(n int64) Option {
	return func(s *service) {
		s.maxPayloadBytes = n
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		referencePrefix: DefaultReferencePrefix,
		validate:        validator.New(),
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.keyGenerator == nil {
		return nil, fmt.Errorf("key generator is required")
	}
	if s.backendName == "" {
		s.backendName = "default"
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// Resource operations

func (s *service) CreateResource(ctx context.Context, req CreateResourceRequest) (*Resource, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	data, err := s.readPayload(req.Payload)
	if err != nil {
		return nil, err
	}

	key := s.keyGenerator.GenerateKey(req.FileName)

	if err := s.blobStore.Write(ctx, key, data); err != nil {
		return nil, &StorageError{
			Backend: s.backendName,
			Key:     key,
			Op:      "write",
			Err:     err,
		}
	}

	resource, err := s.repository.Insert(ctx, req.Title, s.referenceFor(key))
	if err != nil {
		s.discardBlob(key)
		var storeErr *StoreError
		if errors.As(err, &storeErr) {
			return nil, err
		}
		return nil, &StoreError{Op: "insert", Err: err}
	}

	s.logger.Info("Resource created", "id", resource.ID, "storage_reference", resource.StorageReference, "size_bytes", len(data))

	if err := s.eventSink.ResourceCreated(ctx, resource); err != nil {
		// The record is committed; a failing sink does not undo it
		s.logger.Warn("Failed to publish resource created event", "id", resource.ID, "error", err)
	}

	return resource, nil
}

func (s *service) GetResource(ctx context.Context, id int64) (*Resource, error) {
	return s.repository.Get(ctx, id)
}

func (s *service) ListResources(ctx context.Context) ([]*Resource, error) {
	return s.repository.List(ctx)
}

func (s *service) OpenBlob(ctx context.Context, storageReference string) (io.ReadCloser, error) {
	key, ok := s.keyFor(storageReference)
	if !ok {
		return nil, ErrNotFound
	}

	rc, err := s.blobStore.Open(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidKey) {
			return nil, ErrNotFound
		}
		return nil, &StorageError{
			Backend: s.backendName,
			Key:     key,
			Op:      "open",
			Err:     err,
		}
	}
	return rc, nil
}

func (s *service) BlobExists(ctx context.Context, storageReference string) (bool, error) {
	key, ok := s.keyFor(storageReference)
	if !ok {
		return false, nil
	}

	exists, err := s.blobStore.Exists(ctx, key)
	if err != nil {
		if errors.Is(err, ErrInvalidKey) {
			return false, nil
		}
		return false, &StorageError{
			Backend: s.backendName,
			Key:     key,
			Op:      "exists",
			Err:     err,
		}
	}
	return exists, nil
}

// Helper methods

func (s *service) validateCreate(req CreateResourceRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return &ValidationError{
				Field:  strings.ToLower(fieldErrs[0].Field()),
				Reason: "is " + fieldErrs[0].Tag(),
			}
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if req.Payload == nil {
		return &ValidationError{Field: "file", Reason: "is required"}
	}
	return nil
}

func (s *service) readPayload(payload io.Reader) ([]byte, error) {
	reader := payload
	if s.maxPayloadBytes > 0 {
		reader = io.LimitReader(payload, s.maxPayloadBytes+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	if s.maxPayloadBytes > 0 && int64(len(data)) > s.maxPayloadBytes {
		return nil, &ValidationError{
			Field:  "file",
			Reason: fmt.Sprintf("exceeds %d bytes", s.maxPayloadBytes),
		}
	}
	return data, nil
}

// discardBlob removes a blob whose record could not be committed. The
// caller's context may already be cancelled, so a fresh one is used.
func (s *service) discardBlob(key string) {
	if err := s.blobStore.Delete(context.Background(), key); err != nil {
		s.logger.Error("Failed to delete orphaned blob", "backend", s.backendName, "key", key, "error", err)
		return
	}
	s.logger.Warn("Deleted blob after failed record insert", "backend", s.backendName, "key", key)
}

func (s *service) referenceFor(key string) string {
	return s.referencePrefix + "/" + key
}

func (s *service) keyFor(storageReference string) (string, bool) {
	key, ok := strings.CutPrefix(storageReference, s.referencePrefix+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}
