package simpleresource

import (
	"io"
	"time"
)

// Resource is the persisted metadata of one uploaded image.
type Resource struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	StorageReference string    `json:"storage_reference"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CreateResourceRequest contains parameters for creating a resource
type CreateResourceRequest struct {
	Title    string    `validate:"required"`
	FileName string    `validate:"-"`
	Payload  io.Reader `validate:"-"` // checked separately; nil means no file was sent
}
