// Package presets builds ready-to-use Services for common setups.
package presets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/tendant/resource-hub/pkg/resourcehub"
	"github.com/tendant/resource-hub/pkg/resourcehub/config"
	memoryrepo "github.com/tendant/resource-hub/pkg/resourcehub/repo/memory"
	fsstorage "github.com/tendant/resource-hub/pkg/resourcehub/storage/fs"
	memorystorage "github.com/tendant/resource-hub/pkg/resourcehub/storage/memory"
)

// NewDevelopment creates a service for local development: in-memory
// metadata and filesystem blobs under ./dev-data.
//
// The returned cleanup function removes the storage directory.
//
//	svc, cleanup, err := presets.NewDevelopment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (resourcehub.Service, func(), error) {
	cfg := &devConfig{
		storageDir: "./dev-data",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	fsBackend, err := fsstorage.New(fsstorage.Config{
		BaseDir: cfg.storageDir,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create filesystem storage: %w", err)
	}

	svc, err := resourcehub.New(
		resourcehub.WithRepository(memoryrepo.New()),
		resourcehub.WithBlobStore("fs", fsBackend),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}

	cleanup := func() {
		os.RemoveAll(fsBackend.BaseDir())
	}

	return svc, cleanup, nil
}

// NewTesting creates an isolated in-memory service for tests.
// WithTestFixtures seeds a few sample resources.
func NewTesting(t testing.TB, opts ...TestingOption) resourcehub.Service {
	t.Helper()

	cfg := &testConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	svc, err := resourcehub.New(
		resourcehub.WithRepository(memoryrepo.New()),
		resourcehub.WithBlobStore("memory", memorystorage.New()),
	)
	if err != nil {
		t.Fatalf("failed to create test service: %v", err)
	}

	if cfg.fixtures {
		if err := seedFixtures(context.Background(), svc); err != nil {
			t.Fatalf("failed to seed fixtures: %v", err)
		}
	}

	return svc
}

// NewProduction builds a service from the environment and refuses
// in-memory stores. The caller must Close the returned components.
func NewProduction(ctx context.Context, opts ...config.Option) (*config.Components, error) {
	opts = append([]config.Option{config.WithEnvironment("production"), config.WithEnv()}, opts...)
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseType == config.DatabaseMemory {
		return nil, fmt.Errorf("production preset requires a persistent database (postgres or mongo, not memory)")
	}
	if cfg.Storage.Type == config.StorageMemory {
		return nil, fmt.Errorf("production preset requires persistent storage (s3 or fs, not memory)")
	}

	return cfg.Build(ctx, nil)
}

// Fixtures are the sample resources seeded by WithTestFixtures, in id order.
var Fixtures = []resourcehub.UploadResourceRequest{
	{Title: "Calculus Notes", Subject: "Math", Semester: 3, Type: resourcehub.ResourceTypeNotes, UploaderName: "Priya", FileName: "calculus.pdf"},
	{Title: "Linear Algebra Final", Subject: "Math", Semester: 1, Type: resourcehub.ResourceTypePapers, FileName: "algebra-final.pdf"},
	{Title: "Midterm Notes", Subject: "Physics", Semester: 2, Type: resourcehub.ResourceTypeNotes, FileName: "notes.pdf"},
	{Title: "Organic Chemistry Lab", Subject: "Chemistry", Semester: 3, Type: resourcehub.ResourceTypeOther, UploaderName: "Sam", FileName: "lab.txt"},
}

func seedFixtures(ctx context.Context, svc resourcehub.Service) error {
	for _, req := range Fixtures {
		req.Reader = strings.NewReader("sample content for " + req.Title)
		if _, err := svc.UploadResource(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

type devConfig struct {
	storageDir string
}

type testConfig struct {
	fixtures bool
}

// DevelopmentOption is a functional option for NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevStorage sets the development storage directory
func WithDevStorage(dir string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.storageDir = dir
	}
}

// TestingOption is a functional option for NewTesting
type TestingOption func(*testConfig)

// WithTestFixtures seeds the sample resources in Fixtures
func WithTestFixtures() TestingOption {
	return func(cfg *testConfig) {
		cfg.fixtures = true
	}
}
