package resourcehub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/resource-hub/pkg/resourcehub/objectkey"
)

// service implements the Service interface
type service struct {
	repository    Repository
	blobStore     BlobStore
	blobStoreName string
	keyGenerator  objectkey.Generator
	eventSink     EventSink
	logger        *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob storage backend; name appears in errors and logs
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		s.blobStoreName = name
		s.blobStore = store
	}
}

// WithKeyGenerator sets the storage path generator
func WithKeyGenerator(generator objectkey.Generator) Option {
	return func(s *service) {
		s.keyGenerator = generator
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger used for best-effort failures
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{}

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
		s.keyGenerator = objectkey.NewRecommendedGenerator()
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

func (s *service) UploadResource(ctx context.Context, req UploadResourceRequest) (*Resource, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	fileName := CleanFileName(req.FileName)
	uploaderName := strings.TrimSpace(req.UploaderName)
	if uploaderName == "" {
		uploaderName = DefaultUploaderName
	}

	key := s.keyGenerator.GenerateKey(fileName)
	counter := &countingReader{reader: req.Reader}
	if err := s.blobStore.Upload(ctx, key, counter); err != nil {
		return nil, &StorageError{
			Backend: s.blobStoreName,
			Key:     key,
			Op:      "upload",
			Err:     storageWriteError(err),
		}
	}

	resource := &Resource{
		Title:         strings.TrimSpace(req.Title),
		Subject:       strings.TrimSpace(req.Subject),
		Semester:      req.Semester,
		Type:          strings.TrimSpace(req.Type),
		FileName:      fileName,
		StoragePath:   key,
		FileSize:      counter.n,
		UploaderName:  uploaderName,
		UploadedAt:    time.Now().UTC(),
		DownloadCount: 0,
	}

	if err := s.repository.CreateResource(ctx, resource); err != nil {
		// Remove the blob so no storage is left without a record
		if delErr := s.blobStore.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Error("Failed to remove orphaned blob",
				"backend", s.blobStoreName, "key", key, "error", delErr)
		}
		return nil, &ResourceError{
			Op:  "create",
			Err: persistenceError(err),
		}
	}

	if err := s.eventSink.ResourceUploaded(ctx, resource); err != nil {
		s.logger.Warn("Event sink failed", "event", "resource_uploaded", "resource_id", resource.ID, "error", err)
	}

	return resource, nil
}

func (s *service) GetResource(ctx context.Context, id int64) (*Resource, error) {
	resource, err := s.repository.GetResource(ctx, id)
	if err != nil {
		return nil, &ResourceError{ID: id, Op: "get", Err: persistenceError(err)}
	}
	return resource, nil
}

func (s *service) ListResources(ctx context.Context) ([]*Resource, error) {
	resources, err := s.repository.ListResources(ctx)
	if err != nil {
		return nil, &ResourceError{Op: "list", Err: persistenceError(err)}
	}
	return resources, nil
}

func (s *service) SearchResources(ctx context.Context, req SearchResourcesRequest) ([]*Resource, error) {
	subject := strings.TrimSpace(req.Subject)
	keyword := strings.TrimSpace(req.Keyword)

	var (
		resources []*Resource
		err       error
	)
	switch {
	case subject != "" && req.Semester != nil:
		resources, err = s.repository.FindBySubjectAndSemester(ctx, subject, *req.Semester)
	case subject != "":
		resources, err = s.repository.FindBySubject(ctx, subject)
	case req.Semester != nil:
		resources, err = s.repository.FindBySemester(ctx, *req.Semester)
	case keyword != "":
		resources, err = s.repository.FindByTitleContaining(ctx, keyword)
		keyword = ""
	default:
		resources, err = s.repository.ListResources(ctx)
	}
	if err != nil {
		return nil, &ResourceError{Op: "search", Err: persistenceError(err)}
	}

	if keyword != "" {
		resources = filterByTitle(resources, keyword)
	}
	return resources, nil
}

func (s *service) ResolveDownload(ctx context.Context, id int64) (*Download, error) {
	resource, err := s.repository.GetResource(ctx, id)
	if err != nil {
		return nil, &ResourceError{ID: id, Op: "download", Err: persistenceError(err)}
	}

	reader, err := s.blobStore.Download(ctx, resource.StoragePath)
	if err != nil {
		return nil, s.blobReadError(resource, "download", err)
	}

	meta, err := s.blobStore.GetObjectMeta(ctx, resource.StoragePath)
	if err != nil {
		_ = reader.Close()
		return nil, s.blobReadError(resource, "stat", err)
	}

	// Counted only once the blob is known to be readable
	updated, err := s.repository.IncrementDownloadCount(ctx, id)
	if err != nil {
		_ = reader.Close()
		return nil, &ResourceError{ID: id, Op: "download", Err: persistenceError(err)}
	}

	if err := s.eventSink.ResourceDownloaded(ctx, updated); err != nil {
		s.logger.Warn("Event sink failed", "event", "resource_downloaded", "resource_id", id, "error", err)
	}

	return &Download{
		Resource: updated,
		Reader:   reader,
		FileName: updated.FileName,
		Size:     meta.Size,
		ModTime:  meta.UpdatedAt,
	}, nil
}

func (s *service) blobReadError(resource *Resource, op string, err error) error {
	if errors.Is(err, ErrBlobNotFound) {
		s.logger.Warn("Blob missing for resource",
			"resource_id", resource.ID, "backend", s.blobStoreName, "key", resource.StoragePath)
		return &ResourceError{ID: resource.ID, Op: "download", Err: err}
	}
	return &StorageError{Backend: s.blobStoreName, Key: resource.StoragePath, Op: op, Err: err}
}

// persistenceError tags repository failures as ErrPersistence, leaving
// not-found outcomes recognisable as such.
func persistenceError(err error) error {
	if errors.Is(err, ErrResourceNotFound) || errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func storageWriteError(err error) error {
	if errors.Is(err, ErrStorageWrite) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageWrite, err)
}

func filterByTitle(resources []*Resource, keyword string) []*Resource {
	keyword = strings.ToLower(keyword)
	filtered := make([]*Resource, 0, len(resources))
	for _, r := range resources {
		if strings.Contains(strings.ToLower(r.Title), keyword) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// countingReader records how many bytes the blob store consumed
type countingReader struct {
	reader io.Reader
	n      int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	c.n += int64(n)
	return n, err
}
