// Package dbtest opens a migrated PostgreSQL pool for repository tests. Tests
// are skipped unless TEST_DATABASE_URL is set.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-webinar/studio/pkg/database"
)

// Pool returns a pool on an empty, migrated database.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, database.PoolOptions{MaxConns: 4}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE users, themes, avatars CASCADE`)
	require.NoError(t, err)
	return pool
}

// User inserts a user with default settings and returns its id.
func User(t *testing.T, pool *pgxpool.Pool, email string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	var id uuid.UUID
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, 'x') RETURNING id`, email).Scan(&id))
	_, err := pool.Exec(ctx, `INSERT INTO user_settings (user_id) VALUES ($1)`, id)
	require.NoError(t, err)
	return id
}

// Webinar inserts a draft webinar for userID and returns its id.
func Webinar(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	require.NoError(t, pool.QueryRow(context.Background(),
		`INSERT INTO webinars (user_id, name) VALUES ($1, 'Test') RETURNING id`, userID).Scan(&id))
	return id
}
