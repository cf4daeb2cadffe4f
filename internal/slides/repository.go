package slides

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/studio/internal/models"
)

// ErrNotFound is returned for a slide that does not belong to the webinar.
var ErrNotFound = errors.New("slide not found")

// Repository handles slide persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a slide repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const slideColumns = `id, webinar_id, title, subtitle, content, type, notes, script, order_index, created_at, updated_at`

func scanSlide(row pgx.Row) (*models.Slide, error) {
	var s models.Slide
	err := row.Scan(&s.ID, &s.WebinarID, &s.Title, &s.Subtitle, &s.Content, &s.Type, &s.Notes, &s.Script,
		&s.OrderIndex, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns the webinar's slides ordered by order_index.
func (r *Repository) List(ctx context.Context, webinarID uuid.UUID) ([]models.Slide, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+slideColumns+` FROM slides WHERE webinar_id = $1 ORDER BY order_index`, webinarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Slide{}
	for rows.Next() {
		s, err := scanSlide(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// Replace deletes every slide of the webinar and inserts list in one
// transaction. order_index values must be a permutation of [0..len(list)).
func (r *Repository) Replace(ctx context.Context, webinarID uuid.UUID, list []models.Slide) ([]models.Slide, error) {
	if err := models.ValidateSlideOrder(list); err != nil {
		return nil, err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM slides WHERE webinar_id = $1`, webinarID); err != nil {
		return nil, fmt.Errorf("delete slides: %w", err)
	}
	if len(list) > 0 {
		batch := &pgx.Batch{}
		for _, s := range list {
			id := s.ID
			if id == uuid.Nil {
				id = uuid.New()
			}
			batch.Queue(`INSERT INTO slides (id, webinar_id, title, subtitle, content, type, notes, script, order_index)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				id, webinarID, s.Title, s.Subtitle, s.Content, s.Type, s.Notes, s.Script, s.OrderIndex)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("insert slides: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.List(ctx, webinarID)
}

// Patch carries edits to one slide's text; nil fields are left as is.
type Patch struct {
	Title    *string `json:"title"`
	Subtitle *string `json:"subtitle"`
	Content  *string `json:"content"`
	Notes    *string `json:"notes"`
}

// Update applies p to one slide.
func (r *Repository) Update(ctx context.Context, webinarID, slideID uuid.UUID, p Patch) (*models.Slide, error) {
	const q = `UPDATE slides SET
			title = COALESCE($3, title),
			subtitle = COALESCE($4, subtitle),
			content = COALESCE($5, content),
			notes = COALESCE($6, notes),
			updated_at = NOW()
		WHERE id = $1 AND webinar_id = $2 RETURNING ` + slideColumns
	return scanSlide(r.pool.QueryRow(ctx, q, slideID, webinarID, p.Title, p.Subtitle, p.Content, p.Notes))
}

// SetScript stores the slide's narration. A nil script clears it.
func (r *Repository) SetScript(ctx context.Context, webinarID, slideID uuid.UUID, script *string) (*models.Slide, error) {
	const q = `UPDATE slides SET script = $3, updated_at = NOW() WHERE id = $1 AND webinar_id = $2 RETURNING ` + slideColumns
	return scanSlide(r.pool.QueryRow(ctx, q, slideID, webinarID, script))
}
