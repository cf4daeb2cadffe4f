package admin

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/studio/internal/models"
)

var ErrNotFound = errors.New("user not found")

// UserSummary is a user row as the admin surface lists it.
type UserSummary struct {
	models.UserPublic
	MaxWebinars  int `json:"max_webinars"`
	WebinarCount int `json:"webinar_count"`
}

// Repository reads and changes users on behalf of admins. Identity changes
// go through the update_user and delete_user procedures.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an admin repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// missingUser maps "no such user" errors raised by procedures (P0002) and by
// foreign keys (23503) to ErrNotFound.
func missingUser(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "P0002" || pgErr.Code == "23503") {
		return ErrNotFound
	}
	return err
}

// ListUsers returns users newest first with their quota and usage.
func (r *Repository) ListUsers(ctx context.Context, limit, offset int) ([]UserSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.email, u.full_name, u.user_metadata, u.created_at,
		       COALESCE(s.max_webinars, $3),
		       (SELECT COUNT(*) FROM webinars w WHERE w.user_id = u.id)
		FROM users u
		LEFT JOIN user_settings s ON s.user_id = u.id
		ORDER BY u.created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset, models.DefaultMaxWebinars)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []UserSummary{}
	for rows.Next() {
		var u UserSummary
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.Metadata, &u.CreatedAt, &u.MaxWebinars, &u.WebinarCount); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateUser replaces a user's metadata.
func (r *Repository) UpdateUser(ctx context.Context, id uuid.UUID, metadata json.RawMessage) error {
	_, err := r.pool.Exec(ctx, `SELECT update_user($1, $2::jsonb)`, id, string(metadata))
	return missingUser(err)
}

// DeleteUser removes a user and, by cascade, everything they own.
func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `SELECT delete_user($1)`, id)
	return missingUser(err)
}

// PutSettings sets a user's webinar quota.
func (r *Repository) PutSettings(ctx context.Context, id uuid.UUID, maxWebinars int) (*models.UserSettings, error) {
	s := models.UserSettings{UserID: id}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_settings (user_id, max_webinars) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET max_webinars = EXCLUDED.max_webinars, updated_at = NOW()
		RETURNING max_webinars, updated_at`, id, maxWebinars).Scan(&s.MaxWebinars, &s.UpdatedAt)
	if err != nil {
		return nil, missingUser(err)
	}
	return &s, nil
}
