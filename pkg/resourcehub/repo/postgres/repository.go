package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/resource-hub/pkg/resourcehub"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements resourcehub.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const resourceColumns = `id, title, subject, semester, type, file_name, storage_path,
	file_size, uploader_name, upload_date, download_count`

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "storage_path") {
				return fmt.Errorf("storage path already recorded")
			}
			return fmt.Errorf("duplicate entry")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "23514": // check_violation
			return fmt.Errorf("value rejected by constraint %s", pgErr.ConstraintName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) CreateResource(ctx context.Context, resource *resourcehub.Resource) error {
	// PostgreSQL keeps microseconds; store and report the same instant
	resource.UploadedAt = resourcehub.RoundUpTime(resource.UploadedAt.UTC(), time.Microsecond)

	query := `
		INSERT INTO resources (
			title, subject, semester, type, file_name, storage_path,
			file_size, uploader_name, upload_date, download_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		resource.Title, resource.Subject, resource.Semester, resource.Type,
		resource.FileName, resource.StoragePath, resource.FileSize,
		resource.UploaderName, resource.UploadedAt, resource.DownloadCount,
	).Scan(&resource.ID)
	if err != nil {
		return r.handlePostgresError("create resource", err)
	}

	return nil
}

func (r *Repository) GetResource(ctx context.Context, id int64) (*resourcehub.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1`

	resource, err := scanResource(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, resourcehub.ErrResourceNotFound
		}
		return nil, r.handlePostgresError("get resource", err)
	}

	return resource, nil
}

func (r *Repository) ListResources(ctx context.Context) ([]*resourcehub.Resource, error) {
	return r.queryResources(ctx, "list resources",
		`SELECT `+resourceColumns+` FROM resources ORDER BY id`)
}

func (r *Repository) FindBySubject(ctx context.Context, subject string) ([]*resourcehub.Resource, error) {
	return r.queryResources(ctx, "find by subject",
		`SELECT `+resourceColumns+` FROM resources WHERE subject = $1 ORDER BY id`, subject)
}

func (r *Repository) FindBySemester(ctx context.Context, semester int) ([]*resourcehub.Resource, error) {
	return r.queryResources(ctx, "find by semester",
		`SELECT `+resourceColumns+` FROM resources WHERE semester = $1 ORDER BY id`, semester)
}

func (r *Repository) FindBySubjectAndSemester(ctx context.Context, subject string, semester int) ([]*resourcehub.Resource, error) {
	return r.queryResources(ctx, "find by subject and semester",
		`SELECT `+resourceColumns+` FROM resources WHERE subject = $1 AND semester = $2 ORDER BY id`,
		subject, semester)
}

func (r *Repository) FindByTitleContaining(ctx context.Context, keyword string) ([]*resourcehub.Resource, error) {
	return r.queryResources(ctx, "find by title",
		`SELECT `+resourceColumns+` FROM resources WHERE title ILIKE $1 ESCAPE '\' ORDER BY id`,
		"%"+escapeLike(keyword)+"%")
}

func (r *Repository) UpdateResource(ctx context.Context, resource *resourcehub.Resource) error {
	query := `
		UPDATE resources SET
			title = $2, subject = $3, semester = $4, type = $5,
			uploader_name = $6, download_count = $7
		WHERE id = $1 AND download_count <= $7`

	tag, err := r.db.Exec(ctx, query,
		resource.ID, resource.Title, resource.Subject, resource.Semester,
		resource.Type, resource.UploaderName, resource.DownloadCount)
	if err != nil {
		return r.handlePostgresError("update resource", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM resources WHERE id = $1)`, resource.ID).Scan(&exists); err != nil {
			return r.handlePostgresError("update resource", err)
		}
		if exists {
			return resourcehub.ErrDownloadCountDecrease
		}
		return resourcehub.ErrResourceNotFound
	}

	return nil
}

func (r *Repository) IncrementDownloadCount(ctx context.Context, id int64) (*resourcehub.Resource, error) {
	query := `
		UPDATE resources SET download_count = download_count + 1
		WHERE id = $1
		RETURNING ` + resourceColumns

	resource, err := scanResource(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, resourcehub.ErrResourceNotFound
		}
		return nil, r.handlePostgresError("increment download count", err)
	}

	return resource, nil
}

func (r *Repository) queryResources(ctx context.Context, operation, query string, args ...interface{}) ([]*resourcehub.Resource, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError(operation, err)
	}
	defer rows.Close()

	resources := make([]*resourcehub.Resource, 0)
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, r.handlePostgresError(operation, err)
		}
		resources = append(resources, resource)
	}

	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError(operation, err)
	}

	return resources, nil
}

func scanResource(row pgx.Row) (*resourcehub.Resource, error) {
	var resource resourcehub.Resource
	err := row.Scan(
		&resource.ID, &resource.Title, &resource.Subject, &resource.Semester,
		&resource.Type, &resource.FileName, &resource.StoragePath,
		&resource.FileSize, &resource.UploaderName, &resource.UploadedAt,
		&resource.DownloadCount)
	if err != nil {
		return nil, err
	}
	resource.UploadedAt = resource.UploadedAt.UTC()
	return &resource, nil
}

// escapeLike makes LIKE wildcards in user input match literally
func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
