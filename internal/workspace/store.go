// Package workspace holds the per-user authoring context: which webinar is
// being edited, its knowledge base, and whether a generation task is running
// against it. State starts empty for every user and is cleared on sign-out.
package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/pkg/redis"
)

// State is one user's workspace.
type State struct {
	CurrentWebinarID *uuid.UUID            `json:"current_webinar_id"`
	KnowledgeBase    *models.KnowledgeBase `json:"knowledge_base"`
	IsGenerating     bool                  `json:"is_generating"`
}

// Store persists workspaces in a KV.
type Store struct {
	kv     redis.KV
	locker *Locker
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore creates a Store. Workspaces idle longer than ttl are forgotten;
// zero keeps them until cleared.
func NewStore(kv redis.KV, locker *Locker, ttl time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: kv, locker: locker, ttl: ttl, logger: logger}
}

func stateKey(userID uuid.UUID) string {
	return "workspace:" + userID.String()
}

// Get returns the user's workspace, or an empty one if none exists.
func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*State, error) {
	raw, found, err := s.kv.Get(ctx, stateKey(userID))
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	st := &State{}
	if found {
		if err := json.Unmarshal([]byte(raw), st); err != nil {
			s.logger.Warn("discarding unreadable workspace", zap.String("user_id", userID.String()), zap.Error(err))
			st = &State{}
		}
	}
	st.IsGenerating = false
	if st.CurrentWebinarID != nil && s.locker != nil {
		held, err := s.locker.Held(ctx, *st.CurrentWebinarID)
		if err != nil {
			return nil, fmt.Errorf("check generation lock: %w", err)
		}
		st.IsGenerating = held
	}
	return st, nil
}

func (s *Store) put(ctx context.Context, userID uuid.UUID, st *State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode workspace: %w", err)
	}
	if err := s.kv.Set(ctx, stateKey(userID), string(b), s.ttl); err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	return nil
}

// Select makes webinarID the current webinar with its knowledge base, which
// may be nil when none has been generated yet.
func (s *Store) Select(ctx context.Context, userID, webinarID uuid.UUID, kb *models.KnowledgeBase) (*State, error) {
	st := &State{CurrentWebinarID: &webinarID, KnowledgeBase: kb}
	if err := s.put(ctx, userID, st); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// SetKnowledgeBase replaces the knowledge base when webinarID is still the
// current webinar. Otherwise the workspace is left untouched.
func (s *Store) SetKnowledgeBase(ctx context.Context, userID, webinarID uuid.UUID, kb *models.KnowledgeBase) error {
	st, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if st.CurrentWebinarID == nil || *st.CurrentWebinarID != webinarID {
		return nil
	}
	st.KnowledgeBase = kb
	return s.put(ctx, userID, st)
}

// Forget clears the workspace when it points at webinarID, used when a webinar
// is deleted.
func (s *Store) Forget(ctx context.Context, userID, webinarID uuid.UUID) error {
	st, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if st.CurrentWebinarID == nil || *st.CurrentWebinarID != webinarID {
		return nil
	}
	return s.Clear(ctx, userID)
}

// Clear drops all webinar-scoped state for the user.
func (s *Store) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.kv.Del(ctx, stateKey(userID)); err != nil {
		return fmt.Errorf("clear workspace: %w", err)
	}
	return nil
}
