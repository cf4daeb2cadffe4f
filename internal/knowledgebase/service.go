// Package knowledgebase turns questionnaire answers into a stored knowledge
// base and serves the topics, product and bonuses that hang off it.
package knowledgebase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/internal/workspace"
)

// Generator produces knowledge bases and topic descriptions.
type Generator interface {
	GenerateKnowledgeBase(ctx context.Context, data models.WebinarData) (*models.KnowledgeBase, error)
	GenerateTopicDescription(ctx context.Context, name string, index int, webinarDescription string) (string, error)
}

// Store persists knowledge bases.
type Store interface {
	Get(ctx context.Context, webinarID uuid.UUID) (*models.KnowledgeBase, error)
	Save(ctx context.Context, webinarID uuid.UUID, kb models.KnowledgeBase, data *models.WebinarData) error
}

// Renamer updates the webinar name.
type Renamer interface {
	Rename(ctx context.Context, id uuid.UUID, name string) error
}

// Locks guards one generation per webinar and kind.
type Locks interface {
	Acquire(ctx context.Context, kind workspace.Kind, webinarID uuid.UUID) (workspace.Release, error)
}

// Workspaces receives the fresh knowledge base for the current webinar.
type Workspaces interface {
	SetKnowledgeBase(ctx context.Context, userID, webinarID uuid.UUID, kb *models.KnowledgeBase) error
}

// Service coordinates generation and persistence of knowledge bases.
type Service struct {
	gen       Generator
	store     Store
	webinars  Renamer
	locks     Locks
	workspace Workspaces
	logger    *zap.Logger
}

// NewService creates a Service.
func NewService(gen Generator, store Store, webinars Renamer, locks Locks, ws Workspaces, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{gen: gen, store: store, webinars: webinars, locks: locks, workspace: ws, logger: logger}
}

// Generate synthesizes a knowledge base for w from the questionnaire answers,
// saves it together with the answers, names the webinar after it and updates
// the owner's workspace. Only one generation per webinar runs at a time.
func (s *Service) Generate(ctx context.Context, w *models.Webinar, data models.WebinarData) (*models.KnowledgeBase, error) {
	release, err := s.locks.Acquire(ctx, workspace.KindKnowledgeBase, w.ID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("release knowledge base lock", zap.String("webinar_id", w.ID.String()), zap.Error(err))
		}
	}()

	kb, err := s.gen.GenerateKnowledgeBase(ctx, data)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.store.Save(gctx, w.ID, *kb, &data)
	})
	g.Go(func() error {
		return s.webinars.Rename(gctx, w.ID, strings.TrimSpace(kb.WebinarSummary.Name))
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("save knowledge base: %w", err)
	}

	if err := s.workspace.SetKnowledgeBase(ctx, w.UserID, w.ID, kb); err != nil {
		s.logger.Warn("update workspace knowledge base", zap.String("webinar_id", w.ID.String()), zap.Error(err))
	}
	s.logger.Info("knowledge base generated",
		zap.String("webinar_id", w.ID.String()),
		zap.Int("topics", len(kb.WebinarSummary.Topics)),
	)
	return kb, nil
}

// ErrNoKnowledgeBase is returned when editing a webinar that has none yet.
var ErrNoKnowledgeBase = errors.New("knowledge base not found")

// Patch merges field-level edits into the stored knowledge base.
// Refused with workspace.ErrBusy while a generation for w is running, whose
// result would otherwise replace the edit.
func (s *Service) Patch(ctx context.Context, w *models.Webinar, patch models.KnowledgeBasePatch) (*models.KnowledgeBase, error) {
	release, err := s.locks.Acquire(ctx, workspace.KindKnowledgeBase, w.ID)
	if err != nil {
		return nil, err
	}
	defer release(context.WithoutCancel(ctx))

	current, err := s.store.Get(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNoKnowledgeBase
	}
	kb := patch.Apply(*current)
	if err := s.store.Save(ctx, w.ID, kb, nil); err != nil {
		return nil, err
	}
	if patch.WebinarSummary != nil {
		if name := strings.TrimSpace(kb.WebinarSummary.Name); name != "" {
			if err := s.webinars.Rename(ctx, w.ID, name); err != nil {
				return nil, fmt.Errorf("rename webinar: %w", err)
			}
		}
	}
	if err := s.workspace.SetKnowledgeBase(ctx, w.UserID, w.ID, &kb); err != nil {
		s.logger.Warn("update workspace knowledge base", zap.String("webinar_id", w.ID.String()), zap.Error(err))
	}
	return &kb, nil
}

// DescribeTopic suggests a description for the topic at index.
func (s *Service) DescribeTopic(ctx context.Context, name string, index int, webinarDescription string) (string, error) {
	return s.gen.GenerateTopicDescription(ctx, name, index, webinarDescription)
}
