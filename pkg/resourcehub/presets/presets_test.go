package presets

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/resource-hub/pkg/resourcehub"
)

func TestNewDevelopment(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dev-data")

	svc, cleanup, err := NewDevelopment(WithDevStorage(dir))
	require.NoError(t, err)
	require.NotNil(t, cleanup)

	ctx := context.Background()
	resource, err := svc.UploadResource(ctx, resourcehub.UploadResourceRequest{
		Title:    "Midterm Notes",
		Subject:  "Physics",
		Semester: 2,
		FileName: "notes.pdf",
		Reader:   strings.NewReader("Hello Development!"),
	})
	require.NoError(t, err)
	assert.NotZero(t, resource.ID)

	_, err = os.Stat(dir)
	require.NoError(t, err)

	cleanup()

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "storage directory should be removed after cleanup")
}

func TestNewTesting(t *testing.T) {
	svc := NewTesting(t)

	resources, err := svc.ListResources(context.Background())
	require.NoError(t, err)
	assert.Empty(t, resources)
}

func TestNewTestingWithFixtures(t *testing.T) {
	svc := NewTesting(t, WithTestFixtures())
	ctx := context.Background()

	resources, err := svc.ListResources(ctx)
	require.NoError(t, err)
	require.Len(t, resources, len(Fixtures))
	for i, r := range resources {
		assert.Equal(t, Fixtures[i].Title, r.Title)
	}

	download, err := svc.ResolveDownload(ctx, resources[0].ID)
	require.NoError(t, err)
	defer download.Reader.Close()

	data, err := io.ReadAll(download.Reader)
	require.NoError(t, err)
	assert.Equal(t, "sample content for Calculus Notes", string(data))
}

func TestNewTestingIsolated(t *testing.T) {
	a := NewTesting(t, WithTestFixtures())
	b := NewTesting(t)

	listA, err := a.ListResources(context.Background())
	require.NoError(t, err)
	listB, err := b.ListResources(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, listA)
	assert.Empty(t, listB)
}

func TestNewProductionRejectsMemory(t *testing.T) {
	tests := []struct {
		name       string
		dbURL      string
		storageURL string
	}{
		{"memory database", "memory", "file:///var/lib/resourcehub"},
		{"memory storage", "postgres://localhost/hub", "memory://"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", tt.dbURL)
			t.Setenv("STORAGE_URL", tt.storageURL)

			_, err := NewProduction(context.Background())
			assert.Error(t, err)
		})
	}
}
