// Package slides runs deck generation in the background and serves the
// stored deck.
package slides

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/studio/internal/generation"
	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/internal/realtime"
	"github.com/aura-webinar/studio/internal/workspace"
	"github.com/aura-webinar/studio/pkg/redis"
)

// ErrNoKnowledgeBase is returned when a deck is requested before the
// webinar has a knowledge base.
var ErrNoKnowledgeBase = errors.New("knowledge base required before generating slides")

// RunStatus is the state of a deck generation run.
type RunStatus string

const (
	RunIdle      RunStatus = "idle"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Snapshot is the stored view of the latest run for a webinar.
type Snapshot struct {
	WebinarID    uuid.UUID      `json:"webinar_id"`
	Status       RunStatus      `json:"status"`
	Slides       []models.Slide `json:"slides"`
	CurrentIndex int            `json:"current_index"`
	Total        int            `json:"total"`
	Error        string         `json:"error,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

const snapshotTTL = 24 * time.Hour

func snapshotKey(webinarID uuid.UUID) string { return "generation:slides:" + webinarID.String() }

// DeckGenerator produces a full deck.
type DeckGenerator interface {
	GenerateSlides(ctx context.Context, req generation.SlideRequest, progress generation.ProgressFunc) ([]models.Slide, error)
}

// Store is the slide persistence the service needs.
type Store interface {
	List(ctx context.Context, webinarID uuid.UUID) ([]models.Slide, error)
	Replace(ctx context.Context, webinarID uuid.UUID, list []models.Slide) ([]models.Slide, error)
}

// Sources supplies a webinar's knowledge base and topic details.
type Sources interface {
	Get(ctx context.Context, webinarID uuid.UUID) (*models.KnowledgeBase, error)
	Topics(ctx context.Context, webinarID uuid.UUID) ([]models.Topic, error)
}

// ScriptingReopener clears the scripting flag when slides lose their scripts.
type ScriptingReopener interface {
	SetScriptingCompleted(ctx context.Context, id uuid.UUID, done bool) error
}

// Locks guards one generation per webinar and kind.
type Locks interface {
	Acquire(ctx context.Context, kind workspace.Kind, webinarID uuid.UUID) (workspace.Release, error)
}

// Notifier publishes realtime events.
type Notifier interface {
	Publish(topic, event string, payload interface{})
}

// Service starts deck generation runs and tracks their progress.
type Service struct {
	gen        DeckGenerator
	store      Store
	sources    Sources
	webinars   ScriptingReopener
	locks      Locks
	kv         redis.KV
	notifier   Notifier
	runTimeout time.Duration
	logger     *zap.Logger
	now        func() time.Time

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config wires a Service.
type Config struct {
	Generator  DeckGenerator
	Store      Store
	Sources    Sources
	Webinars   ScriptingReopener
	Locks      Locks
	KV         redis.KV
	Notifier   Notifier
	RunTimeout time.Duration
	Logger     *zap.Logger
}

// NewService creates a Service. Runs outlive the request that started them
// and stop when Close is called.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 15 * time.Minute
	}
	base, cancel := context.WithCancel(context.Background())
	return &Service{
		gen:        cfg.Generator,
		store:      cfg.Store,
		sources:    cfg.Sources,
		webinars:   cfg.Webinars,
		locks:      cfg.Locks,
		kv:         cfg.KV,
		notifier:   cfg.Notifier,
		runTimeout: cfg.RunTimeout,
		logger:     cfg.Logger,
		now:        time.Now,
		base:       base,
		cancel:     cancel,
	}
}

// Close cancels running generations and waits for them to stop.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// Start begins generating the deck for w and returns the initial snapshot.
// It fails with workspace.ErrBusy while another deck run holds the webinar.
func (s *Service) Start(ctx context.Context, w *models.Webinar) (*Snapshot, error) {
	kb, err := s.sources.Get(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	if kb == nil {
		return nil, ErrNoKnowledgeBase
	}
	topics, err := s.sources.Topics(ctx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}

	release, err := s.locks.Acquire(ctx, workspace.KindSlides, w.ID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{WebinarID: w.ID, Status: RunRunning, Slides: []models.Slide{}}
	if err := s.save(ctx, snap); err != nil {
		_ = release(context.WithoutCancel(ctx))
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(w.ID, generation.SlideRequest{WebinarID: w.ID, KnowledgeBase: *kb, TopicDetails: topics}, release)
	}()
	return snap, nil
}

func (s *Service) run(webinarID uuid.UUID, req generation.SlideRequest, release workspace.Release) {
	ctx, cancel := context.WithTimeout(s.base, s.runTimeout)
	defer cancel()
	log := s.logger.With(zap.String("webinar_id", webinarID.String()))
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("release slides lock", zap.Error(err))
		}
	}()

	start := s.now()
	topic := realtime.WebinarTopic(webinarID)
	snap := &Snapshot{WebinarID: webinarID, Status: RunRunning}

	deck, err := s.gen.GenerateSlides(ctx, req, func(p generation.Progress) {
		snap.Slides, snap.CurrentIndex, snap.Total = p.Slides, p.CurrentIndex, p.Total
		if err := s.save(ctx, snap); err != nil {
			log.Warn("save generation progress", zap.Error(err))
		}
		s.publish(topic, realtime.EventSlidesProgress, snap)
	})
	if err == nil {
		deck, err = s.store.Replace(ctx, webinarID, deck)
	}
	if err == nil {
		// Fresh slides carry no scripts yet.
		err = s.webinars.SetScriptingCompleted(ctx, webinarID, false)
	}

	// Record the outcome even if the run deadline has passed.
	final := context.WithoutCancel(ctx)
	if err != nil {
		_, msg := generation.HTTPStatus(err)
		snap.Status, snap.Error = RunFailed, msg
		log.Error("slide generation failed", zap.Duration("took", s.now().Sub(start)), zap.Error(err))
		if err := s.save(final, snap); err != nil {
			log.Warn("save generation failure", zap.Error(err))
		}
		s.publish(topic, realtime.EventSlidesFailed, snap)
		return
	}

	snap.Status, snap.Slides, snap.CurrentIndex = RunCompleted, deck, len(deck)
	if err := s.save(final, snap); err != nil {
		log.Warn("save generation result", zap.Error(err))
	}
	s.publish(topic, realtime.EventSlidesCompleted, snap)
	log.Info("slides generated", zap.Int("slides", len(deck)), zap.Duration("took", s.now().Sub(start)))
}

// Status returns the latest run snapshot for the webinar.
func (s *Service) Status(ctx context.Context, webinarID uuid.UUID) (*Snapshot, error) {
	raw, found, err := s.kv.Get(ctx, snapshotKey(webinarID))
	if err != nil {
		return nil, err
	}
	if !found {
		return &Snapshot{WebinarID: webinarID, Status: RunIdle, Slides: []models.Slide{}}, nil
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decode generation snapshot: %w", err)
	}
	return &snap, nil
}

// Save replaces the deck with an edited list. It is refused while a deck run
// holds the webinar. Scripting is reopened when a slide has no script.
func (s *Service) Save(ctx context.Context, w *models.Webinar, list []models.Slide) ([]models.Slide, error) {
	if err := models.ValidateSlideOrder(list); err != nil {
		return nil, err
	}
	release, err := s.locks.Acquire(ctx, workspace.KindSlides, w.ID)
	if err != nil {
		return nil, err
	}
	defer release(context.WithoutCancel(ctx))

	saved, err := s.store.Replace(ctx, w.ID, list)
	if err != nil {
		return nil, err
	}
	if w.ScriptingCompleted {
		for _, sl := range saved {
			if !sl.HasScript() {
				if err := s.webinars.SetScriptingCompleted(ctx, w.ID, false); err != nil {
					return nil, err
				}
				break
			}
		}
	}
	return saved, nil
}

// Exclusive runs fn under the webinar's slides lock, so a single-slide edit
// cannot be overwritten by a deck run finishing. Returns workspace.ErrBusy
// while a run or a save holds the lock.
func (s *Service) Exclusive(ctx context.Context, webinarID uuid.UUID, fn func(ctx context.Context) error) error {
	release, err := s.locks.Acquire(ctx, workspace.KindSlides, webinarID)
	if err != nil {
		return err
	}
	defer release(context.WithoutCancel(ctx))
	return fn(ctx)
}

func (s *Service) save(ctx context.Context, snap *Snapshot) error {
	snap.UpdatedAt = s.now()
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, snapshotKey(snap.WebinarID), string(b), snapshotTTL)
}

func (s *Service) publish(topic, event string, snap *Snapshot) {
	if s.notifier != nil {
		s.notifier.Publish(topic, event, snap)
	}
}
