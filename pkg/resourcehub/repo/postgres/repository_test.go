package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/resource-hub/pkg/resourcehub"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"calc", "calc"},
		{"100%", `100\%`},
		{"snake_case", `snake\_case`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeLike(tt.in))
		})
	}
}

func TestHandlePostgresError(t *testing.T) {
	r := &Repository{}

	err := r.handlePostgresError("create resource", &pgconn.PgError{Code: "23505", ConstraintName: "resources_storage_path_key"})
	assert.EqualError(t, err, "storage path already recorded")

	err = r.handlePostgresError("create resource", &pgconn.PgError{Code: "42P01"})
	assert.Contains(t, err.Error(), "migration required")

	err = r.handlePostgresError("create resource", &pgconn.PgError{Code: "23502", ColumnName: "title"})
	assert.EqualError(t, err, "required field title is missing")

	cause := errors.New("connection reset")
	err = r.handlePostgresError("list resources", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "list resources")
}

func newResource(title, subject string, semester int) *resourcehub.Resource {
	return &resourcehub.Resource{
		Title:        title,
		Subject:      subject,
		Semester:     semester,
		Type:         resourcehub.ResourceTypeNotes,
		FileName:     "notes.pdf",
		StoragePath:  title + "_" + time.Now().Format(time.RFC3339Nano),
		FileSize:     128,
		UploaderName: resourcehub.DefaultUploaderName,
		UploadedAt:   time.Now().UTC(),
	}
}

func TestRepository_Integration(t *testing.T) {
	db := newTestDB(t)
	repo := NewWithPool(db.Pool)
	ctx := context.Background()

	calc := newResource("Calculus Notes", "Math", 3)
	algebra := newResource("Linear Algebra", "Math", 2)
	quantum := newResource("Quantum 100% Intro", "Physics", 3)
	for _, r := range []*resourcehub.Resource{calc, algebra, quantum} {
		require.NoError(t, repo.CreateResource(ctx, r))
	}
	assert.Less(t, calc.ID, algebra.ID)

	t.Run("GetResource", func(t *testing.T) {
		got, err := repo.GetResource(ctx, calc.ID)
		require.NoError(t, err)
		assert.Equal(t, calc, got)

		_, err = repo.GetResource(ctx, 999999)
		assert.ErrorIs(t, err, resourcehub.ErrResourceNotFound)
	})

	t.Run("Queries", func(t *testing.T) {
		all, err := repo.ListResources(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		math3, err := repo.FindBySubjectAndSemester(ctx, "Math", 3)
		require.NoError(t, err)
		require.Len(t, math3, 1)
		assert.Equal(t, calc.ID, math3[0].ID)

		bySemester, err := repo.FindBySemester(ctx, 3)
		require.NoError(t, err)
		assert.Len(t, bySemester, 2)

		bySubject, err := repo.FindBySubject(ctx, "Math")
		require.NoError(t, err)
		assert.Len(t, bySubject, 2)

		byTitle, err := repo.FindByTitleContaining(ctx, "CALC")
		require.NoError(t, err)
		require.Len(t, byTitle, 1)
		assert.Equal(t, calc.ID, byTitle[0].ID)

		// Wildcards in the keyword match literally
		percent, err := repo.FindByTitleContaining(ctx, "100%")
		require.NoError(t, err)
		require.Len(t, percent, 1)
		assert.Equal(t, quantum.ID, percent[0].ID)

		underscore, err := repo.FindByTitleContaining(ctx, "_")
		require.NoError(t, err)
		assert.Empty(t, underscore)
	})

	t.Run("DuplicateStoragePath", func(t *testing.T) {
		dup := newResource("Dup", "Math", 1)
		dup.StoragePath = calc.StoragePath
		assert.Error(t, repo.CreateResource(ctx, dup))
	})

	t.Run("UpdateResource", func(t *testing.T) {
		algebra.DownloadCount = 5
		require.NoError(t, repo.UpdateResource(ctx, algebra))

		got, err := repo.GetResource(ctx, algebra.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.DownloadCount)

		missing := newResource("Missing", "Math", 1)
		missing.ID = 999999
		assert.ErrorIs(t, repo.UpdateResource(ctx, missing), resourcehub.ErrResourceNotFound)
	})

	t.Run("UpdateResource_KeepsFixedFieldsAndCount", func(t *testing.T) {
		stale := *algebra
		stale.Title = "Renamed"
		stale.DownloadCount = 1
		stale.StoragePath = "other.pdf"
		stale.FileSize = 1
		stale.UploadedAt = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
		assert.ErrorIs(t, repo.UpdateResource(ctx, &stale), resourcehub.ErrDownloadCountDecrease)

		got, err := repo.GetResource(ctx, algebra.ID)
		require.NoError(t, err)
		assert.Equal(t, algebra, got)

		stale.DownloadCount = algebra.DownloadCount
		require.NoError(t, repo.UpdateResource(ctx, &stale))

		got, err = repo.GetResource(ctx, algebra.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)
		assert.Equal(t, algebra.StoragePath, got.StoragePath)
		assert.Equal(t, algebra.FileSize, got.FileSize)
		assert.True(t, algebra.UploadedAt.Equal(got.UploadedAt))
	})

	t.Run("UploadedAtNotBeforeInput", func(t *testing.T) {
		r := newResource("Precise", "Math", 1)
		taken := time.Date(2024, 6, 10, 12, 0, 0, 1500, time.UTC)
		r.UploadedAt = taken
		require.NoError(t, repo.CreateResource(ctx, r))

		got, err := repo.GetResource(ctx, r.ID)
		require.NoError(t, err)
		assert.False(t, got.UploadedAt.Before(taken))
		assert.Equal(t, time.Date(2024, 6, 10, 12, 0, 0, 2000, time.UTC), got.UploadedAt.UTC())
	})

	t.Run("ConcurrentIncrements", func(t *testing.T) {
		const workers = 20
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.IncrementDownloadCount(ctx, quantum.ID)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := repo.GetResource(ctx, quantum.ID)
		require.NoError(t, err)
		assert.Equal(t, workers, got.DownloadCount)

		_, err = repo.IncrementDownloadCount(ctx, 999999)
		assert.ErrorIs(t, err, resourcehub.ErrResourceNotFound)
	})
}
