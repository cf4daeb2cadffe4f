package webinars

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/studio/internal/models"
)

var (
	ErrNotFound         = errors.New("webinar not found")
	ErrQuotaExceeded    = errors.New("webinar limit reached")
	ErrCatalogReference = errors.New("referenced theme or avatar does not exist")
)

// Repository handles webinar persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a webinar repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const webinarColumns = `id, user_id, name, description, status, theme_id, avatar_id, scripting_completed, created_at, updated_at`

func scanWebinar(row pgx.Row) (*models.Webinar, error) {
	var w models.Webinar
	err := row.Scan(&w.ID, &w.UserID, &w.Name, &w.Description, &w.Status, &w.ThemeID, &w.AvatarID,
		&w.ScriptingCompleted, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateWithinQuota inserts w for its owner unless the owner already has
// max_webinars webinars. The settings row is locked so concurrent creates
// cannot both pass the check.
func (r *Repository) CreateWithinQuota(ctx context.Context, w *models.Webinar) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	limit := models.DefaultMaxWebinars
	err = tx.QueryRow(ctx, `SELECT max_webinars FROM user_settings WHERE user_id = $1 FOR UPDATE`, w.UserID).Scan(&limit)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("load quota: %w", err)
	}
	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM webinars WHERE user_id = $1`, w.UserID).Scan(&count); err != nil {
		return fmt.Errorf("count webinars: %w", err)
	}
	if count >= limit {
		return ErrQuotaExceeded
	}

	created, err := scanWebinar(tx.QueryRow(ctx,
		`INSERT INTO webinars (user_id, name, description) VALUES ($1, $2, $3) RETURNING `+webinarColumns,
		w.UserID, w.Name, w.Description))
	if err != nil {
		return fmt.Errorf("insert webinar: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	*w = *created
	return nil
}

// GetByID returns a webinar by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Webinar, error) {
	return scanWebinar(r.pool.QueryRow(ctx, `SELECT `+webinarColumns+` FROM webinars WHERE id = $1`, id))
}

// ListByUser returns the user's webinars, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Webinar, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+webinarColumns+` FROM webinars WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.Webinar{}
	for rows.Next() {
		w, err := scanWebinar(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *w)
	}
	return list, rows.Err()
}

// Update changes name and/or description; nil leaves a field as is.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, name, description *string) (*models.Webinar, error) {
	const q = `UPDATE webinars SET name = COALESCE($2, name), description = COALESCE($3, description), updated_at = NOW()
		WHERE id = $1 RETURNING ` + webinarColumns
	return scanWebinar(r.pool.QueryRow(ctx, q, id, name, description))
}

// Rename sets the webinar name. Used when a knowledge base names the webinar.
func (r *Repository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	return r.exec(ctx, `UPDATE webinars SET name = $2, updated_at = NOW() WHERE id = $1`, id, name)
}

// Delete removes a webinar and, through cascading keys, everything under it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `DELETE FROM webinars WHERE id = $1`, id)
}

// SetTheme records the selected theme.
func (r *Repository) SetTheme(ctx context.Context, id, themeID uuid.UUID) (*models.Webinar, error) {
	return r.updateReturning(ctx, `UPDATE webinars SET theme_id = $2, updated_at = NOW() WHERE id = $1 RETURNING `+webinarColumns, id, themeID)
}

// SetAvatar records the selected presenter avatar.
func (r *Repository) SetAvatar(ctx context.Context, id, avatarID uuid.UUID) (*models.Webinar, error) {
	return r.updateReturning(ctx, `UPDATE webinars SET avatar_id = $2, updated_at = NOW() WHERE id = $1 RETURNING `+webinarColumns, id, avatarID)
}

// SetScriptingCompleted marks the scripting step done or reopens it.
func (r *Repository) SetScriptingCompleted(ctx context.Context, id uuid.UUID, done bool) error {
	return r.exec(ctx, `UPDATE webinars SET scripting_completed = $2, updated_at = NOW() WHERE id = $1`, id, done)
}

// SetStatus moves the webinar through its lifecycle.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status models.WebinarStatus) error {
	return r.exec(ctx, `UPDATE webinars SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
}

// SlideCount returns how many slides the webinar has.
func (r *Repository) SlideCount(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM slides WHERE webinar_id = $1`, id).Scan(&n)
	return n, err
}

func (r *Repository) updateReturning(ctx context.Context, q string, args ...interface{}) (*models.Webinar, error) {
	w, err := scanWebinar(r.pool.QueryRow(ctx, q, args...))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return nil, ErrCatalogReference
	}
	return w, err
}

func (r *Repository) exec(ctx context.Context, q string, args ...interface{}) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
