// Package release serves the final review of a webinar, its submission, and
// requests to render its avatar videos.
package release

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/studio/internal/catalog"
	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/internal/realtime"
	"github.com/aura-webinar/studio/internal/webinars"
	"github.com/aura-webinar/studio/internal/workflow"
	"github.com/aura-webinar/studio/pkg/queue"
	"github.com/aura-webinar/studio/pkg/response"
)

// Webinars reads slide counts and records submission.
type Webinars interface {
	webinars.SlideCounter
	SetStatus(ctx context.Context, id uuid.UUID, status models.WebinarStatus) error
}

// Slides lists a webinar's slides.
type Slides interface {
	List(ctx context.Context, webinarID uuid.UUID) ([]models.Slide, error)
}

// Catalog loads the selected theme and avatar.
type Catalog interface {
	GetTheme(ctx context.Context, id uuid.UUID) (*models.Theme, error)
	GetAvatar(ctx context.Context, id uuid.UUID) (*models.Avatar, error)
}

// Renders persists video render requests.
type Renders interface {
	CreateRender(ctx context.Context, webinarID uuid.UUID) (*models.VideoRender, error)
	LatestRender(ctx context.Context, webinarID uuid.UUID) (*models.VideoRender, error)
	SetRenderStatus(ctx context.Context, id uuid.UUID, status models.RenderStatus, msg string) error
}

// Enqueuer hands render jobs to the worker.
type Enqueuer interface {
	EnqueueVideoRender(ctx context.Context, payload queue.VideoRenderPayload) error
}

// Notifier publishes realtime events.
type Notifier interface {
	Publish(topic, event string, payload interface{})
}

// Review is everything the release screen shows.
type Review struct {
	Webinar      *models.Webinar       `json:"webinar"`
	Slides       []models.Slide        `json:"slides"`
	Theme        *models.Theme         `json:"theme,omitempty"`
	Avatar       *models.Avatar        `json:"avatar,omitempty"`
	Steps        []workflow.StepStatus `json:"steps"`
	LatestRender *models.VideoRender   `json:"latest_render,omitempty"`
}

// Handler serves release endpoints.
type Handler struct {
	webinars Webinars
	slides   Slides
	catalog  Catalog
	renders  Renders
	jobs     Enqueuer
	notifier Notifier
	logger   *zap.Logger
}

// NewHandler creates a release handler. jobs may be nil when no render
// endpoint is configured; POST /videos then answers 503.
func NewHandler(w Webinars, s Slides, cat Catalog, renders Renders, jobs Enqueuer, notifier Notifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{webinars: w, slides: s, catalog: cat, renders: renders, jobs: jobs, notifier: notifier, logger: logger}
}

func (h *Handler) internal(c *gin.Context, op string, err error) {
	h.logger.Error(op, zap.String("path", c.FullPath()), zap.Error(err))
	response.Internal(c, "failed to "+op)
}

// reviewable refuses the request with 409 while the review step is locked.
func (h *Handler) reviewable(c *gin.Context, w *models.Webinar) ([]workflow.StepStatus, bool) {
	st, err := webinars.WorkflowState(c.Request.Context(), h.webinars, w)
	if err != nil {
		h.internal(c, "load workflow state", err)
		return nil, false
	}
	if err := workflow.Activate(st, workflow.StepReview); err != nil {
		response.Conflict(c, err.Error())
		return nil, false
	}
	return workflow.Classify(st), true
}

// Review handles GET /webinars/:id/review.
func (h *Handler) Review(c *gin.Context) {
	ctx := c.Request.Context()
	w := webinars.FromContext(c)
	st, err := webinars.WorkflowState(ctx, h.webinars, w)
	if err != nil {
		h.internal(c, "load workflow state", err)
		return
	}
	out := Review{Webinar: w, Steps: workflow.Classify(st)}
	if out.Slides, err = h.slides.List(ctx, w.ID); err != nil {
		h.internal(c, "load slides", err)
		return
	}
	if w.ThemeID != nil {
		if out.Theme, err = h.catalog.GetTheme(ctx, *w.ThemeID); err != nil && !errors.Is(err, catalog.ErrNotFound) {
			h.internal(c, "load theme", err)
			return
		}
	}
	if w.AvatarID != nil {
		if out.Avatar, err = h.catalog.GetAvatar(ctx, *w.AvatarID); err != nil && !errors.Is(err, catalog.ErrNotFound) {
			h.internal(c, "load avatar", err)
			return
		}
	}
	if out.LatestRender, err = h.renders.LatestRender(ctx, w.ID); err != nil {
		h.internal(c, "load render", err)
		return
	}
	response.OK(c, out)
}

// Submit handles POST /webinars/:id/submit. Submitting twice is a no-op.
func (h *Handler) Submit(c *gin.Context) {
	w := webinars.FromContext(c)
	if _, ok := h.reviewable(c, w); !ok {
		return
	}
	if w.Status == models.WebinarPublished {
		response.Conflict(c, "webinar is already published")
		return
	}
	if w.Status != models.WebinarSubmitted {
		if err := h.webinars.SetStatus(c.Request.Context(), w.ID, models.WebinarSubmitted); err != nil {
			h.internal(c, "submit webinar", err)
			return
		}
		w.Status = models.WebinarSubmitted
		h.notifier.Publish(realtime.UserTopic(w.UserID), realtime.EventWebinarUpdated, w)
		h.logger.Info("webinar submitted", zap.String("webinar_id", w.ID.String()))
	}
	response.OK(c, w)
}

// Videos handles POST /webinars/:id/videos. Only one render may be queued at
// a time.
func (h *Handler) Videos(c *gin.Context) {
	if h.jobs == nil {
		response.ServiceUnavailable(c, "video rendering is not configured")
		return
	}
	ctx := c.Request.Context()
	w := webinars.FromContext(c)
	if _, ok := h.reviewable(c, w); !ok {
		return
	}
	last, err := h.renders.LatestRender(ctx, w.ID)
	if err != nil {
		h.internal(c, "load render", err)
		return
	}
	if last != nil && last.Status == models.RenderQueued {
		response.Conflict(c, "a video render is already queued")
		return
	}

	render, err := h.renders.CreateRender(ctx, w.ID)
	if err != nil {
		h.internal(c, "create render", err)
		return
	}
	if err := h.jobs.EnqueueVideoRender(ctx, queue.VideoRenderPayload{RenderID: render.ID, WebinarID: w.ID}); err != nil {
		if mErr := h.renders.SetRenderStatus(context.WithoutCancel(ctx), render.ID, models.RenderFailed, "could not be queued"); mErr != nil {
			h.logger.Warn("mark render failed", zap.Error(mErr))
		}
		h.internal(c, "queue render", err)
		return
	}
	response.Accepted(c, render)
}
