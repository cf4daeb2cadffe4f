// Package workflow classifies the five steps of webinar creation from the
// webinar's persisted state. Completion is always derived, never stored.
package workflow

import (
	"errors"
	"fmt"
)

// Step identifies a creation step.
type Step int

const (
	StepSlides Step = iota
	StepTheme
	StepScripting
	StepAvatar
	StepReview
)

// Steps lists every step in order.
var Steps = []Step{StepSlides, StepTheme, StepScripting, StepAvatar, StepReview}

var stepNames = map[Step]string{
	StepSlides:    "Slide Generation",
	StepTheme:     "Theme Selection",
	StepScripting: "Scripting",
	StepAvatar:    "Avatar Selection",
	StepReview:    "Review & Release",
}

func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	_, ok := stepNames[s]
	return ok
}

// Prerequisite returns the step that must be completed before s, if any.
func (s Step) Prerequisite() (Step, bool) {
	if s <= StepSlides || !s.Valid() {
		return 0, false
	}
	return s - 1, true
}

// Status is the derived state of a step.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusAvailable Status = "available"
	StatusLocked    Status = "locked"
)

var (
	ErrUnknownStep = errors.New("unknown workflow step")
	ErrStepLocked  = errors.New("this step is locked until the previous step is completed")
)

// State is the persisted data the classification depends on.
type State struct {
	SlideCount         int
	ThemeSelected      bool
	ScriptingCompleted bool
	AvatarSelected     bool
}

// StepStatus pairs a step with its derived status.
type StepStatus struct {
	Step   Step   `json:"step"`
	Name   string `json:"name"`
	Status Status `json:"status"`
}

func (st State) done(s Step) bool {
	switch s {
	case StepSlides:
		return st.SlideCount > 0
	case StepTheme:
		return st.ThemeSelected
	case StepScripting:
		return st.ScriptingCompleted
	case StepAvatar:
		return st.AvatarSelected
	}
	// Review has no stored predicate.
	return false
}

// StatusOf classifies one step. A step whose prerequisite is not completed is
// locked even when its own data already exists.
func StatusOf(st State, s Step) Status {
	if pre, ok := s.Prerequisite(); ok && StatusOf(st, pre) != StatusCompleted {
		return StatusLocked
	}
	if st.done(s) {
		return StatusCompleted
	}
	return StatusAvailable
}

// Classify returns the status of every step in order.
func Classify(st State) []StepStatus {
	out := make([]StepStatus, len(Steps))
	for i, s := range Steps {
		out[i] = StepStatus{Step: s, Name: s.String(), Status: StatusOf(st, s)}
	}
	return out
}

// Activate checks that s may be entered. Locked steps are refused.
func Activate(st State, s Step) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownStep, int(s))
	}
	if StatusOf(st, s) == StatusLocked {
		return fmt.Errorf("%s: %w", s, ErrStepLocked)
	}
	return nil
}
