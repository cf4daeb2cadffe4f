package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User represents a platform user. Admin rights are derived from the email
// domain, never stored.
type User struct {
	ID        uuid.UUID       `json:"id"`
	Email     string          `json:"email"`
	Password  string          `json:"-"`
	FullName  string          `json:"full_name"`
	Metadata  json.RawMessage `json:"user_metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        uuid.UUID       `json:"id"`
	Email     string          `json:"email"`
	FullName  string          `json:"full_name"`
	Metadata  json.RawMessage `json:"user_metadata,omitempty"`
	IsAdmin   bool            `json:"is_admin"`
	CreatedAt time.Time       `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic(isAdmin bool) UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Metadata:  u.Metadata,
		IsAdmin:   isAdmin,
		CreatedAt: u.CreatedAt,
	}
}
