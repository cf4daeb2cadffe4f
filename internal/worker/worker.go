// Package worker hands queued video renders to the external render endpoint.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/internal/realtime"
	"github.com/aura-webinar/studio/pkg/queue"
)

// Renders reads and updates render requests.
type Renders interface {
	GetRender(ctx context.Context, id uuid.UUID) (*models.VideoRender, error)
	SetRenderStatus(ctx context.Context, id uuid.UUID, status models.RenderStatus, msg string) error
}

// Webinars loads a webinar.
type Webinars interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Webinar, error)
}

// Slides lists a webinar's slides in order.
type Slides interface {
	List(ctx context.Context, webinarID uuid.UUID) ([]models.Slide, error)
}

// Catalog loads themes and avatars.
type Catalog interface {
	GetTheme(ctx context.Context, id uuid.UUID) (*models.Theme, error)
	GetAvatar(ctx context.Context, id uuid.UUID) (*models.Avatar, error)
}

// Jobs is the render job queue.
type Jobs interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (dead bool, err error)
}

// Notifier publishes realtime events.
type Notifier interface {
	Publish(topic, event string, payload interface{})
}

// RenderSlide is one entry of the render request body.
type RenderSlide struct {
	TemplateID string `json:"templateId"`
	Script     string `json:"script"`
	Title      string `json:"title"`
}

// RenderRequest is the body POSTed to the render endpoint.
type RenderRequest struct {
	WebinarID uuid.UUID     `json:"webinarId"`
	AvatarID  string        `json:"avatarId"`
	Slides    []RenderSlide `json:"slides"`
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(format string, args ...interface{}) error {
	return &permanentError{err: fmt.Errorf(format, args...)}
}

// Config configures a RenderProcessor.
type Config struct {
	URL      string
	Client   *http.Client
	Renders  Renders
	Webinars Webinars
	Slides   Slides
	Catalog  Catalog
	Jobs     Jobs
	Notifier Notifier
	Logger   *zap.Logger
	Backoff  time.Duration // pause after a failure; defaults to queue.RetryBackoff
}

// RenderProcessor processes video render jobs: build the request from the
// webinar's slides, theme and avatar, POST it, record the outcome.
type RenderProcessor struct {
	cfg Config
}

// NewRenderProcessor creates a render processor.
func NewRenderProcessor(cfg Config) *RenderProcessor {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = queue.RetryBackoff
	}
	return &RenderProcessor{cfg: cfg}
}

// Build assembles the render request. Each slide uses its theme template
// for its type and its script.
func (p *RenderProcessor) Build(ctx context.Context, w *models.Webinar) (*RenderRequest, error) {
	if w.ThemeID == nil || w.AvatarID == nil {
		return nil, permanent("webinar %s has no theme or avatar", w.ID)
	}
	theme, err := p.cfg.Catalog.GetTheme(ctx, *w.ThemeID)
	if err != nil {
		return nil, fmt.Errorf("load theme: %w", err)
	}
	avatar, err := p.cfg.Catalog.GetAvatar(ctx, *w.AvatarID)
	if err != nil {
		return nil, fmt.Errorf("load avatar: %w", err)
	}
	list, err := p.cfg.Slides.List(ctx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("load slides: %w", err)
	}
	if len(list) == 0 {
		return nil, permanent("webinar %s has no slides", w.ID)
	}
	req := &RenderRequest{WebinarID: w.ID, AvatarID: avatar.ExternalAvatarID}
	for _, sl := range list {
		if !sl.HasScript() {
			return nil, permanent("slide %d has no script", sl.OrderIndex)
		}
		req.Slides = append(req.Slides, RenderSlide{
			TemplateID: theme.TemplateFor(sl.Type),
			Script:     *sl.Script,
			Title:      sl.Title,
		})
	}
	return req, nil
}

// Process executes one render job.
func (p *RenderProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeVideoRender {
		return permanent("unknown job type: %s", job.Type)
	}
	var payload queue.VideoRenderPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return permanent("unmarshal payload: %v", err)
	}

	render, err := p.cfg.Renders.GetRender(ctx, payload.RenderID)
	if err != nil {
		return permanent("render %s: %v", payload.RenderID, err)
	}
	if render.Status != models.RenderQueued {
		p.cfg.Logger.Info("render already handled", zap.String("render_id", render.ID.String()), zap.String("status", string(render.Status)))
		return nil
	}
	w, err := p.cfg.Webinars.GetByID(ctx, payload.WebinarID)
	if err != nil {
		return permanent("webinar %s: %v", payload.WebinarID, err)
	}
	req, err := p.Build(ctx, w)
	if err != nil {
		return err
	}
	if err := p.post(ctx, req); err != nil {
		return err
	}

	if err := p.cfg.Renders.SetRenderStatus(ctx, render.ID, models.RenderSubmitted, ""); err != nil {
		return fmt.Errorf("update render: %w", err)
	}
	p.notify(w.UserID, realtime.EventVideoSubmitted, render.ID, "")
	p.cfg.Logger.Info("render submitted",
		zap.String("render_id", render.ID.String()),
		zap.String("webinar_id", w.ID.String()),
		zap.Int("slides", len(req.Slides)),
	)
	return nil
}

func (p *RenderProcessor) post(ctx context.Context, body *RenderRequest) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return permanent("marshal render request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(raw))
	if err != nil {
		return permanent("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		return fmt.Errorf("render request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("render endpoint answered %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return &permanentError{err: err}
	}
	return err
}

func (p *RenderProcessor) notify(userID uuid.UUID, event string, renderID uuid.UUID, msg string) {
	if p.cfg.Notifier == nil {
		return
	}
	p.cfg.Notifier.Publish(realtime.UserTopic(userID), event, map[string]string{
		"render_id": renderID.String(),
		"error":     msg,
	})
}

// fail records a render as failed once it will not be retried.
func (p *RenderProcessor) fail(ctx context.Context, job *queue.Job, cause error) {
	var payload queue.VideoRenderPayload
	if json.Unmarshal(job.Payload, &payload) != nil || payload.RenderID == uuid.Nil {
		return
	}
	if err := p.cfg.Renders.SetRenderStatus(ctx, payload.RenderID, models.RenderFailed, cause.Error()); err != nil {
		p.cfg.Logger.Warn("mark render failed", zap.String("render_id", payload.RenderID.String()), zap.Error(err))
		return
	}
	if w, err := p.cfg.Webinars.GetByID(ctx, payload.WebinarID); err == nil {
		p.notify(w.UserID, realtime.EventVideoFailed, payload.RenderID, cause.Error())
	}
}

// handle processes one job and retries, dead-letters or fails it.
func (p *RenderProcessor) handle(ctx context.Context, job *queue.Job) {
	p.cfg.Logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	err := p.Process(ctx, job)
	if err == nil {
		return
	}
	p.cfg.Logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))

	// The job is already off the list: bookkeeping must finish even when
	// shutdown cancelled ctx mid-render, or the render stays queued forever.
	keep := context.WithoutCancel(ctx)

	var perm *permanentError
	if errors.As(err, &perm) {
		p.fail(keep, job, err)
		return
	}
	dead, reErr := p.cfg.Jobs.Retry(keep, job)
	if reErr != nil {
		p.cfg.Logger.Error("requeue failed, giving up on render", zap.String("job_id", job.ID), zap.Error(reErr))
		p.fail(keep, job, fmt.Errorf("%w (requeue: %v)", err, reErr))
		return
	}
	if dead {
		p.fail(keep, job, err)
	}
	p.sleep(ctx)
}

func (p *RenderProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.cfg.Backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run starts the worker loop until ctx is done.
func (p *RenderProcessor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.cfg.Logger.Info("render worker stopping")
			return
		}
		job, err := p.cfg.Jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.cfg.Logger.Warn("dequeue error", zap.Error(err))
				p.sleep(ctx)
			}
			continue
		}
		if job == nil {
			continue
		}
		p.handle(ctx, job)
	}
}
