package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// testDB represents a test database connection
type testDB struct {
	Pool *pgxpool.Pool
}

// newTestDB connects to TEST_DATABASE_URL and applies the migrations
func newTestDB(t *testing.T) *testDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping database test in short mode")
	}
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(pool.Close)

	require.NoError(t, pool.Ping(ctx), "Failed to ping test database")
	require.NoError(t, Migrate(ctx, pool), "Failed to migrate test database")

	db := &testDB{Pool: pool}
	db.cleanup(t)
	return db
}

// cleanup removes all test data from the database
func (db *testDB) cleanup(t *testing.T) {
	t.Helper()
	_, err := db.Pool.Exec(context.Background(), "TRUNCATE resources RESTART IDENTITY")
	require.NoError(t, err, "Failed to truncate resources table")
}
