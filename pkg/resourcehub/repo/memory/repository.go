package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tendant/resource-hub/pkg/resourcehub"
)

// Repository implements resourcehub.Repository using in-memory storage
type Repository struct {
	mu        sync.RWMutex
	resources map[int64]*resourcehub.Resource
	nextID    int64
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		resources: make(map[int64]*resourcehub.Resource),
	}
}

func (r *Repository) CreateResource(ctx context.Context, resource *resourcehub.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	resource.ID = r.nextID

	// Create a copy to avoid external modifications
	resourceCopy := *resource
	r.resources[resource.ID] = &resourceCopy

	return nil
}

func (r *Repository) GetResource(ctx context.Context, id int64) (*resourcehub.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resource, exists := r.resources[id]
	if !exists {
		return nil, resourcehub.ErrResourceNotFound
	}

	// Return a copy to prevent external modifications
	resourceCopy := *resource
	return &resourceCopy, nil
}

func (r *Repository) ListResources(ctx context.Context) ([]*resourcehub.Resource, error) {
	return r.filter(func(*resourcehub.Resource) bool { return true }), nil
}

func (r *Repository) FindBySubject(ctx context.Context, subject string) ([]*resourcehub.Resource, error) {
	return r.filter(func(res *resourcehub.Resource) bool {
		return res.Subject == subject
	}), nil
}

func (r *Repository) FindBySemester(ctx context.Context, semester int) ([]*resourcehub.Resource, error) {
	return r.filter(func(res *resourcehub.Resource) bool {
		return res.Semester == semester
	}), nil
}

func (r *Repository) FindBySubjectAndSemester(ctx context.Context, subject string, semester int) ([]*resourcehub.Resource, error) {
	return r.filter(func(res *resourcehub.Resource) bool {
		return res.Subject == subject && res.Semester == semester
	}), nil
}

func (r *Repository) FindByTitleContaining(ctx context.Context, keyword string) ([]*resourcehub.Resource, error) {
	needle := strings.ToLower(keyword)
	return r.filter(func(res *resourcehub.Resource) bool {
		return strings.Contains(strings.ToLower(res.Title), needle)
	}), nil
}

func (r *Repository) UpdateResource(ctx context.Context, resource *resourcehub.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.resources[resource.ID]
	if !exists {
		return resourcehub.ErrResourceNotFound
	}
	if resource.DownloadCount < stored.DownloadCount {
		return resourcehub.ErrDownloadCountDecrease
	}

	// File name, storage path, size and upload time are fixed at creation
	stored.Title = resource.Title
	stored.Subject = resource.Subject
	stored.Semester = resource.Semester
	stored.Type = resource.Type
	stored.UploaderName = resource.UploaderName
	stored.DownloadCount = resource.DownloadCount
	return nil
}

func (r *Repository) IncrementDownloadCount(ctx context.Context, id int64) (*resourcehub.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	resource, exists := r.resources[id]
	if !exists {
		return nil, resourcehub.ErrResourceNotFound
	}

	resource.DownloadCount++
	resourceCopy := *resource
	return &resourceCopy, nil
}

// filter returns copies of matching records ordered by id
func (r *Repository) filter(match func(*resourcehub.Resource) bool) []*resourcehub.Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*resourcehub.Resource, 0)
	for _, resource := range r.resources {
		if match(resource) {
			resourceCopy := *resource
			result = append(result, &resourceCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result
}
