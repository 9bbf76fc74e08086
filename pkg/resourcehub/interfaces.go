package resourcehub

import (
	"context"
	"io"
)

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Upload writes the full content under objectKey. It must not replace
	// an existing blob.
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// Download opens the blob for reading
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// GetObjectMeta measures the blob as it exists now
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)

	// Delete removes the blob
	Delete(ctx context.Context, objectKey string) error
}

// Repository defines the interface for resource record persistence.
// Listings are ordered by id ascending.
type Repository interface {
	// CreateResource assigns resource.ID and persists the full record
	CreateResource(ctx context.Context, resource *Resource) error
	GetResource(ctx context.Context, id int64) (*Resource, error)
	ListResources(ctx context.Context) ([]*Resource, error)

	FindBySubject(ctx context.Context, subject string) ([]*Resource, error)
	FindBySemester(ctx context.Context, semester int) ([]*Resource, error)
	FindBySubjectAndSemester(ctx context.Context, subject string, semester int) ([]*Resource, error)
	// FindByTitleContaining matches keyword as a case-insensitive substring
	FindByTitleContaining(ctx context.Context, keyword string) ([]*Resource, error)

	// UpdateResource persists the mutable fields of an existing record. It fails
	// with ErrDownloadCountDecrease when the download count would go down.
	UpdateResource(ctx context.Context, resource *Resource) error

	// IncrementDownloadCount adds one to the counter in a single atomic
	// step and returns the updated record
	IncrementDownloadCount(ctx context.Context, id int64) (*Resource, error)
}

// EventSink defines the interface for event handling
type EventSink interface {
	// ResourceUploaded is fired after the blob and the record are stored
	ResourceUploaded(ctx context.Context, resource *Resource) error

	// ResourceDownloaded is fired after a download has been resolved
	ResourceDownloaded(ctx context.Context, resource *Resource) error
}
