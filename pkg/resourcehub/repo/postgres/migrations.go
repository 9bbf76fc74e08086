package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations contains all schema changes in order, keyed by version.
var migrations = []struct {
	Version string
	SQL     string
}{
	{
		Version: "000001_create_resources",
		SQL: `
			CREATE TABLE IF NOT EXISTS resources (
				id             BIGSERIAL    PRIMARY KEY,
				title          TEXT         NOT NULL,
				subject        TEXT         NOT NULL,
				semester       INTEGER      NOT NULL CHECK (semester >= 1),
				type           TEXT         NOT NULL DEFAULT '',
				file_name      TEXT         NOT NULL,
				storage_path   TEXT         NOT NULL,
				file_size      BIGINT       NOT NULL DEFAULT 0,
				uploader_name  TEXT         NOT NULL DEFAULT 'Anonymous',
				upload_date    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
				download_count INTEGER      NOT NULL DEFAULT 0,
				CONSTRAINT resources_storage_path_key UNIQUE (storage_path)
			);
			CREATE INDEX IF NOT EXISTS idx_resources_subject_semester ON resources(subject, semester);
			CREATE INDEX IF NOT EXISTS idx_resources_semester ON resources(semester);
		`,
	},
}

// Migrate applies all pending migrations, each in its own transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		err := pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status for %s: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
		}

		slog.Info("applied migration", "version", m.Version)
	}

	return nil
}
