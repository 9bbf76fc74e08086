package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/tendant/resource-hub/pkg/resourcehub"
)

type object struct {
	data      []byte
	updatedAt time.Time
	etag      string
}

// Backend is an in-memory implementation of the resourcehub.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
	}
}

// GetObjectMeta retrieves metadata for an object in memory
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*resourcehub.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, resourcehub.ErrBlobNotFound
	}

	return &resourcehub.ObjectMeta{
		Key:       objectKey,
		Size:      int64(len(obj.data)),
		UpdatedAt: obj.updatedAt,
		ETag:      obj.etag,
	}, nil
}

// Upload stores the content. An existing key is left untouched.
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sum := md5.Sum(data)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; exists {
		return resourcehub.ErrBlobExists
	}
	b.objects[objectKey] = object{
		data:      data,
		updatedAt: time.Now().UTC(),
		etag:      hex.EncodeToString(sum[:]),
	}
	return nil
}

// Download downloads content directly
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, resourcehub.ErrBlobNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return resourcehub.ErrBlobNotFound
	}

	delete(b.objects, objectKey)
	return nil
}

// Len reports how many blobs are held
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

// Keys lists the stored keys in sorted order
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
