package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/studio/internal/models"
)

var ErrNotFound = errors.New("catalog item not found")

// Repository persists themes and avatars.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a catalog repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const themeColumns = `id, name, description, preview_url, opening_template_id, agenda_template_id,
	content_template_id, offer_template_id, closing_template_id, created_at`

func scanTheme(row pgx.Row) (*models.Theme, error) {
	var t models.Theme
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.PreviewURL, &t.OpeningTemplateID, &t.AgendaTemplateID,
		&t.ContentTemplateID, &t.OfferTemplateID, &t.ClosingTemplateID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListThemes returns every theme, oldest first.
func (r *Repository) ListThemes(ctx context.Context) ([]models.Theme, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+themeColumns+` FROM themes ORDER BY created_at, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Theme{}
	for rows.Next() {
		t, err := scanTheme(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// GetTheme loads one theme.
func (r *Repository) GetTheme(ctx context.Context, id uuid.UUID) (*models.Theme, error) {
	return scanTheme(r.pool.QueryRow(ctx, `SELECT `+themeColumns+` FROM themes WHERE id = $1`, id))
}

// CreateTheme inserts t and fills its id and timestamp.
func (r *Repository) CreateTheme(ctx context.Context, t *models.Theme) error {
	created, err := scanTheme(r.pool.QueryRow(ctx, `
		INSERT INTO themes (name, description, preview_url, opening_template_id, agenda_template_id,
			content_template_id, offer_template_id, closing_template_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+themeColumns,
		t.Name, t.Description, t.PreviewURL, t.OpeningTemplateID, t.AgendaTemplateID,
		t.ContentTemplateID, t.OfferTemplateID, t.ClosingTemplateID))
	if err != nil {
		return err
	}
	*t = *created
	return nil
}

// UpdateTheme overwrites every editable field of t.
func (r *Repository) UpdateTheme(ctx context.Context, t *models.Theme) error {
	updated, err := scanTheme(r.pool.QueryRow(ctx, `
		UPDATE themes SET name = $2, description = $3, preview_url = $4, opening_template_id = $5,
			agenda_template_id = $6, content_template_id = $7, offer_template_id = $8, closing_template_id = $9
		WHERE id = $1
		RETURNING `+themeColumns,
		t.ID, t.Name, t.Description, t.PreviewURL, t.OpeningTemplateID, t.AgendaTemplateID,
		t.ContentTemplateID, t.OfferTemplateID, t.ClosingTemplateID))
	if err != nil {
		return err
	}
	*t = *updated
	return nil
}

// DeleteTheme removes a theme. Webinars using it lose their selection.
func (r *Repository) DeleteTheme(ctx context.Context, id uuid.UUID) error {
	return r.delete(ctx, `DELETE FROM themes WHERE id = $1`, id)
}

const avatarColumns = `id, name, external_avatar_id, preview_video_url, preview_photo_url, gender, created_at`

func scanAvatar(row pgx.Row) (*models.Avatar, error) {
	var a models.Avatar
	err := row.Scan(&a.ID, &a.Name, &a.ExternalAvatarID, &a.PreviewVideoURL, &a.PreviewPhotoURL, &a.Gender, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAvatars returns every avatar, optionally filtered by gender.
func (r *Repository) ListAvatars(ctx context.Context, gender models.Gender) ([]models.Avatar, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+avatarColumns+` FROM avatars
		WHERE $1::text = '' OR gender = $1
		ORDER BY created_at, name`, string(gender))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Avatar{}
	for rows.Next() {
		a, err := scanAvatar(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// GetAvatar loads one avatar.
func (r *Repository) GetAvatar(ctx context.Context, id uuid.UUID) (*models.Avatar, error) {
	return scanAvatar(r.pool.QueryRow(ctx, `SELECT `+avatarColumns+` FROM avatars WHERE id = $1`, id))
}

// CreateAvatar inserts a and fills its id and timestamp.
func (r *Repository) CreateAvatar(ctx context.Context, a *models.Avatar) error {
	created, err := scanAvatar(r.pool.QueryRow(ctx, `
		INSERT INTO avatars (name, external_avatar_id, preview_video_url, preview_photo_url, gender)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+avatarColumns,
		a.Name, a.ExternalAvatarID, a.PreviewVideoURL, a.PreviewPhotoURL, a.Gender))
	if err != nil {
		return err
	}
	*a = *created
	return nil
}

// UpdateAvatar overwrites every editable field of a.
func (r *Repository) UpdateAvatar(ctx context.Context, a *models.Avatar) error {
	updated, err := scanAvatar(r.pool.QueryRow(ctx, `
		UPDATE avatars SET name = $2, external_avatar_id = $3, preview_video_url = $4,
			preview_photo_url = $5, gender = $6
		WHERE id = $1
		RETURNING `+avatarColumns,
		a.ID, a.Name, a.ExternalAvatarID, a.PreviewVideoURL, a.PreviewPhotoURL, a.Gender))
	if err != nil {
		return err
	}
	*a = *updated
	return nil
}

// DeleteAvatar removes an avatar. Webinars using it lose their selection.
func (r *Repository) DeleteAvatar(ctx context.Context, id uuid.UUID) error {
	return r.delete(ctx, `DELETE FROM avatars WHERE id = $1`, id)
}

func (r *Repository) delete(ctx context.Context, sql string, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, sql, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
