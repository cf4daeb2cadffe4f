package models

import (
	"time"

	"github.com/google/uuid"
)

// Gender of a presenter avatar.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Avatar is a virtual presenter from the admin-managed catalog.
type Avatar struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	ExternalAvatarID string    `json:"external_avatar_id"` // render vendor reference
	PreviewVideoURL  string    `json:"preview_video_url"`
	PreviewPhotoURL  string    `json:"preview_photo_url"`
	Gender           Gender    `json:"gender"`
	CreatedAt        time.Time `json:"created_at"`
}

// Theme is a visual theme from the admin-managed catalog.
type Theme struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	PreviewURL        string    `json:"preview_url"`
	OpeningTemplateID string    `json:"opening_template_id"`
	AgendaTemplateID  string    `json:"agenda_template_id"`
	ContentTemplateID string    `json:"content_template_id"`
	OfferTemplateID   string    `json:"offer_template_id"`
	ClosingTemplateID string    `json:"closing_template_id"`
	CreatedAt         time.Time `json:"created_at"`
}
