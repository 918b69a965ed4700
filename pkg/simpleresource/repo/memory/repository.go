package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tendant/simple-resource/pkg/simpleresource"
)

// Repository implements simpleresource.Repository using in-memory storage
type Repository struct {
	mu         sync.RWMutex
	resources  []*simpleresource.Resource // ascending ID
	references map[string]int64           // storage_reference -> id
	nextID     int64
	now        func() time.Time
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		references: make(map[string]int64),
		nextID:     1,
		now:        time.Now,
	}
}

func (r *Repository) Insert(ctx context.Context, title, storageReference string) (*simpleresource.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, &simpleresource.StoreError{Op: "insert", Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.references[storageReference]; exists {
		return nil, &simpleresource.StoreError{
			Op:  "insert",
			Err: fmt.Errorf("duplicate storage reference %s", storageReference),
		}
	}

	now := r.now().UTC()
	resource := &simpleresource.Resource{
		ID:               r.nextID,
		Title:            title,
		StorageReference: storageReference,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	r.nextID++
	r.resources = append(r.resources, resource)
	r.references[storageReference] = resource.ID

	resourceCopy := *resource
	return &resourceCopy, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*simpleresource.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// IDs are dense and start at 1
	if id < 1 || id > int64(len(r.resources)) {
		return nil, simpleresource.ErrNotFound
	}

	resourceCopy := *r.resources[id-1]
	return &resourceCopy, nil
}

func (r *Repository) List(ctx context.Context) ([]*simpleresource.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*simpleresource.Resource, 0, len(r.resources))
	for _, resource := range r.resources {
		resourceCopy := *resource
		result = append(result, &resourceCopy)
	}
	return result, nil
}

// Migrate is a no-op for the in-memory repository
func (r *Repository) Migrate(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory repository
func (r *Repository) Close() error {
	return nil
}
