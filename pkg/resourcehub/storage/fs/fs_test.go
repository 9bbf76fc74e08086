package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tendant/resource-hub/pkg/resourcehub"
)

func TestFSBackend_BasicOps(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}

	ctx := context.Background()
	key := "objects/ab/123_notes.pdf"

	// Upload
	data := []byte("hello fs")
	if err := backend.Upload(ctx, key, bytes.NewReader(data)); err != nil {
		t.Fatalf("upload: %v", err)
	}

	// GetObjectMeta
	meta, err := backend.GetObjectMeta(ctx, key)
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if meta.Size != int64(len(data)) {
		t.Fatalf("expected size %d, got %d", len(data), meta.Size)
	}

	// Download
	rc, err := backend.Download(ctx, key)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(got) != string(data) {
		t.Fatalf("download mismatch: %q", string(got))
	}

	// Delete
	if err := backend.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmp, key)); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
	// Empty shard directories are pruned, the base directory is kept
	if _, err := os.Stat(filepath.Join(tmp, "objects")); !os.IsNotExist(err) {
		t.Fatalf("expected empty directories removed, stat err=%v", err)
	}
	if _, err := os.Stat(tmp); err != nil {
		t.Fatalf("base directory removed: %v", err)
	}
}

func TestFSBackend_CreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "uploads")
	if _, err := New(Config{BaseDir: base}); err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		t.Fatalf("expected base directory created, err=%v", err)
	}

	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for empty base directory")
	}
}

func TestFSBackend_NoOverwrite(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	ctx := context.Background()

	if err := backend.Upload(ctx, "same.txt", strings.NewReader("first")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := backend.Upload(ctx, "same.txt", strings.NewReader("second")); !errors.Is(err, resourcehub.ErrBlobExists) {
		t.Fatalf("expected ErrBlobExists, got %v", err)
	}

	rc, err := backend.Download(ctx, "same.txt")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "first" {
		t.Fatalf("blob was overwritten: %q", string(got))
	}
}

func TestFSBackend_NotFound(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	ctx := context.Background()

	if _, err := backend.Download(ctx, "missing.txt"); !errors.Is(err, resourcehub.ErrBlobNotFound) {
		t.Fatalf("download: expected ErrBlobNotFound, got %v", err)
	}
	if _, err := backend.GetObjectMeta(ctx, "missing.txt"); !errors.Is(err, resourcehub.ErrBlobNotFound) {
		t.Fatalf("meta: expected ErrBlobNotFound, got %v", err)
	}
	if err := backend.Delete(ctx, "missing.txt"); !errors.Is(err, resourcehub.ErrBlobNotFound) {
		t.Fatalf("delete: expected ErrBlobNotFound, got %v", err)
	}
}

func TestFSBackend_RejectsEscapingKeys(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"../outside.txt", "a/../../outside.txt", ""} {
		if err := backend.Upload(ctx, key, strings.NewReader("x")); err == nil {
			t.Fatalf("expected upload of %q to fail", key)
		}
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestFSBackend_PartialWriteRemoved(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}

	if err := backend.Upload(context.Background(), "broken.bin", failingReader{}); err == nil {
		t.Fatalf("expected upload error")
	}
	if _, err := os.Stat(filepath.Join(tmp, "broken.bin")); !os.IsNotExist(err) {
		t.Fatalf("expected partial file removed, stat err=%v", err)
	}
}

func TestFSBackend_CancelledContext(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := backend.Upload(ctx, "late.txt", strings.NewReader("data")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
