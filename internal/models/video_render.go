package models

import (
	"time"

	"github.com/google/uuid"
)

// RenderStatus tracks a video render request.
type RenderStatus string

const (
	RenderQueued    RenderStatus = "queued"
	RenderSubmitted RenderStatus = "submitted"
	RenderFailed    RenderStatus = "failed"
)

// VideoRender is one request to turn a webinar's scripted slides into
// avatar videos.
type VideoRender struct {
	ID        uuid.UUID    `json:"id"`
	WebinarID uuid.UUID    `json:"webinar_id"`
	Status    RenderStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TemplateFor returns the theme template used to render a slide of type t.
func (t Theme) TemplateFor(st SlideType) string {
	switch st {
	case SlideIntro:
		return t.OpeningTemplateID
	case SlideAgenda:
		return t.AgendaTemplateID
	default:
		return t.ContentTemplateID
	}
}
