package resourcehub

import "context"

// Service defines the main interface for the resource hub library
type Service interface {
	// UploadResource stores the blob, then the record, and returns the record
	UploadResource(ctx context.Context, req UploadResourceRequest) (*Resource, error)

	// GetResource is a pure read; ErrResourceNotFound when absent
	GetResource(ctx context.Context, id int64) (*Resource, error)

	ListResources(ctx context.Context) ([]*Resource, error)
	SearchResources(ctx context.Context, req SearchResourcesRequest) ([]*Resource, error)

	// ResolveDownload opens the blob and counts the download
	ResolveDownload(ctx context.Context, id int64) (*Download, error)
}
