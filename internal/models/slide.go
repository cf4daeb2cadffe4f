package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SlideType is the role a slide plays in the deck.
type SlideType string

const (
	SlideIntro   SlideType = "intro"
	SlideAgenda  SlideType = "agenda"
	SlideContent SlideType = "content"
)

// Valid reports whether t is one of the known slide types.
func (t SlideType) Valid() bool {
	switch t {
	case SlideIntro, SlideAgenda, SlideContent:
		return true
	}
	return false
}

// Slide is one unit of deck content. Subtitle is only used by intro slides,
// Content by every other type. OrderIndex defines render and generation order.
type Slide struct {
	ID         uuid.UUID `json:"id"`
	WebinarID  uuid.UUID `json:"webinar_id"`
	Title      string    `json:"title"`
	Subtitle   string    `json:"subtitle,omitempty"`
	Content    string    `json:"content,omitempty"`
	Type       SlideType `json:"type"`
	Notes      string    `json:"notes"`
	Script     *string   `json:"script"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Body returns the slide's visible text: the subtitle for intros, content otherwise.
func (s Slide) Body() string {
	if s.Type == SlideIntro {
		return s.Subtitle
	}
	return s.Content
}

// HasScript reports whether a non-empty script is attached.
func (s Slide) HasScript() bool {
	return s.Script != nil && *s.Script != ""
}

// ErrSlideOrder is returned when order_index values are not a permutation of [0..N).
var ErrSlideOrder = errors.New("slide order_index values must be unique and contiguous from 0")

// ValidateSlideOrder checks that the order_index values of slides form a
// contiguous, unique permutation of [0..len(slides)).
func ValidateSlideOrder(slides []Slide) error {
	seen := make([]bool, len(slides))
	for _, s := range slides {
		if s.OrderIndex < 0 || s.OrderIndex >= len(slides) || seen[s.OrderIndex] {
			return fmt.Errorf("%w: got %d", ErrSlideOrder, s.OrderIndex)
		}
		seen[s.OrderIndex] = true
	}
	return nil
}
