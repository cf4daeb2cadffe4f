// Package scripts writes and stores the narration for each slide and closes
// the scripting step once every slide has one.
package scripts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/internal/slides"
	"github.com/aura-webinar/studio/internal/workflow"
	"github.com/aura-webinar/studio/internal/workspace"
)

// ErrMissingScripts is returned when completing scripting while a slide has no script.
var ErrMissingScripts = errors.New("every slide needs a script")

// Generator writes one slide's script.
type Generator interface {
	GenerateScript(ctx context.Context, list []models.Slide, index int, kb *models.KnowledgeBase) (string, error)
}

// Store reads slides and writes scripts.
type Store interface {
	List(ctx context.Context, webinarID uuid.UUID) ([]models.Slide, error)
	SetScript(ctx context.Context, webinarID, slideID uuid.UUID, script *string) (*models.Slide, error)
}

// KnowledgeBases loads a webinar's knowledge base.
type KnowledgeBases interface {
	Get(ctx context.Context, webinarID uuid.UUID) (*models.KnowledgeBase, error)
}

// Webinars records scripting completion.
type Webinars interface {
	SetScriptingCompleted(ctx context.Context, id uuid.UUID, done bool) error
}

// Locks guards one generation per webinar and kind.
type Locks interface {
	Acquire(ctx context.Context, kind workspace.Kind, webinarID uuid.UUID) (workspace.Release, error)
}

// Service manages slide scripts.
type Service struct {
	gen      Generator
	store    Store
	kbs      KnowledgeBases
	webinars Webinars
	locks    Locks
	logger   *zap.Logger
}

// NewService creates a Service.
func NewService(gen Generator, store Store, kbs KnowledgeBases, webinars Webinars, locks Locks, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{gen: gen, store: store, kbs: kbs, webinars: webinars, locks: locks, logger: logger}
}

// deck loads the slides and refuses work while the scripting step is locked.
func (s *Service) deck(ctx context.Context, w *models.Webinar) ([]models.Slide, error) {
	list, err := s.store.List(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	st := workflow.State{
		SlideCount:         len(list),
		ThemeSelected:      w.ThemeID != nil,
		ScriptingCompleted: w.ScriptingCompleted,
		AvatarSelected:     w.AvatarID != nil,
	}
	if err := workflow.Activate(st, workflow.StepScripting); err != nil {
		return nil, err
	}
	return list, nil
}

func indexOf(list []models.Slide, id uuid.UUID) int {
	for i, sl := range list {
		if sl.ID == id {
			return i
		}
	}
	return -1
}

// Generate writes and stores the script of one slide, using its neighbours
// and the knowledge base as context.
func (s *Service) Generate(ctx context.Context, w *models.Webinar, slideID uuid.UUID) (*models.Slide, error) {
	list, err := s.deck(ctx, w)
	if err != nil {
		return nil, err
	}
	i := indexOf(list, slideID)
	if i < 0 {
		return nil, slides.ErrNotFound
	}

	release, err := s.locks.Acquire(ctx, workspace.KindScript, w.ID)
	if err != nil {
		return nil, err
	}
	defer release(context.WithoutCancel(ctx))

	kb, err := s.kbs.Get(ctx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}
	text, err := s.gen.GenerateScript(ctx, list, i, kb)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("script generated",
		zap.String("webinar_id", w.ID.String()),
		zap.Int("index", i),
		zap.Int("chars", len(text)),
	)
	return s.store.SetScript(ctx, w.ID, slideID, &text)
}

// Put stores a hand-written script. An empty script clears it and reopens
// the scripting step.
func (s *Service) Put(ctx context.Context, w *models.Webinar, slideID uuid.UUID, script string) (*models.Slide, error) {
	if _, err := s.deck(ctx, w); err != nil {
		return nil, err
	}
	var value *string
	if script = strings.TrimSpace(script); script != "" {
		value = &script
	}
	sl, err := s.store.SetScript(ctx, w.ID, slideID, value)
	if err != nil {
		return nil, err
	}
	if value == nil && w.ScriptingCompleted {
		if err := s.webinars.SetScriptingCompleted(ctx, w.ID, false); err != nil {
			return nil, err
		}
	}
	return sl, nil
}

// Complete closes the scripting step. Every slide must have a script.
func (s *Service) Complete(ctx context.Context, w *models.Webinar) error {
	list, err := s.deck(ctx, w)
	if err != nil {
		return err
	}
	missing := 0
	for _, sl := range list {
		if !sl.HasScript() {
			missing++
		}
	}
	if missing > 0 {
		return fmt.Errorf("%w: %d of %d slides have none", ErrMissingScripts, missing, len(list))
	}
	return s.webinars.SetScriptingCompleted(ctx, w.ID, true)
}
