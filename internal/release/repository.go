package release

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/studio/internal/models"
)

var ErrRenderNotFound = errors.New("video render not found")

// Repository persists video render requests.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a render repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const renderColumns = `id, webinar_id, status, error, created_at, updated_at`

func scanRender(row pgx.Row) (*models.VideoRender, error) {
	var v models.VideoRender
	err := row.Scan(&v.ID, &v.WebinarID, &v.Status, &v.Error, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRenderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateRender records a queued render for a webinar.
func (r *Repository) CreateRender(ctx context.Context, webinarID uuid.UUID) (*models.VideoRender, error) {
	return scanRender(r.pool.QueryRow(ctx,
		`INSERT INTO video_renders (webinar_id) VALUES ($1) RETURNING `+renderColumns, webinarID))
}

// GetRender loads one render.
func (r *Repository) GetRender(ctx context.Context, id uuid.UUID) (*models.VideoRender, error) {
	return scanRender(r.pool.QueryRow(ctx, `SELECT `+renderColumns+` FROM video_renders WHERE id = $1`, id))
}

// LatestRender returns the most recent render of a webinar, or nil.
func (r *Repository) LatestRender(ctx context.Context, webinarID uuid.UUID) (*models.VideoRender, error) {
	v, err := scanRender(r.pool.QueryRow(ctx,
		`SELECT `+renderColumns+` FROM video_renders WHERE webinar_id = $1 ORDER BY created_at DESC LIMIT 1`, webinarID))
	if errors.Is(err, ErrRenderNotFound) {
		return nil, nil
	}
	return v, err
}

// SetRenderStatus moves a render to status, recording msg for failures.
func (r *Repository) SetRenderStatus(ctx context.Context, id uuid.UUID, status models.RenderStatus, msg string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE video_renders SET status = $2, error = $3, updated_at = NOW() WHERE id = $1`, id, status, msg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRenderNotFound
	}
	return nil
}
