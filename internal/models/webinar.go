package models

import (
	"time"

	"github.com/google/uuid"
)

// WebinarStatus is the lifecycle state of a webinar.
type WebinarStatus string

const (
	WebinarDraft     WebinarStatus = "draft"
	WebinarSubmitted WebinarStatus = "submitted"
	WebinarPublished WebinarStatus = "published"
)

// DefaultWebinarName is the name given to a webinar before its knowledge base names it.
const DefaultWebinarName = "My First Webinar"

// Webinar is the root aggregate of the creation workflow. Knowledge base, topics,
// product and slides all hang off it and are deleted with it.
type Webinar struct {
	ID                 uuid.UUID     `json:"id"`
	UserID             uuid.UUID     `json:"user_id"`
	Name               string        `json:"name"`
	Description        string        `json:"description"`
	Status             WebinarStatus `json:"status"`
	ThemeID            *uuid.UUID    `json:"theme_id,omitempty"`
	AvatarID           *uuid.UUID    `json:"avatar_id,omitempty"`
	ScriptingCompleted bool          `json:"scripting_completed"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// UserSettings holds per-user limits managed by admins.
type UserSettings struct {
	UserID      uuid.UUID `json:"user_id"`
	MaxWebinars int       `json:"max_webinars"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefaultMaxWebinars is the quota given to new users.
const DefaultMaxWebinars = 3
