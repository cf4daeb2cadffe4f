package slides

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/internal/webinars"
	"github.com/aura-webinar/studio/internal/workspace"
	"github.com/aura-webinar/studio/pkg/response"
)

// Editor edits single slides.
type Editor interface {
	List(ctx context.Context, webinarID uuid.UUID) ([]models.Slide, error)
	Update(ctx context.Context, webinarID, slideID uuid.UUID, p Patch) (*models.Slide, error)
}

// SaveRequest is the body for PUT /webinars/:id/slides.
type SaveRequest struct {
	Slides []SlideInput `json:"slides"`
}

// SlideInput is one slide in a save request.
type SlideInput struct {
	ID         uuid.UUID        `json:"id"`
	Title      string           `json:"title"`
	Subtitle   string           `json:"subtitle"`
	Content    string           `json:"content"`
	Type       models.SlideType `json:"type"`
	Notes      string           `json:"notes"`
	Script     *string          `json:"script"`
	OrderIndex int              `json:"order_index"`
}

// Validate checks the slide type.
func (s SlideInput) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Type, validation.Required, validation.In(models.SlideIntro, models.SlideAgenda, models.SlideContent)),
		validation.Field(&s.OrderIndex, validation.Min(0)),
	)
}

// Validate checks every slide.
func (r SaveRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Slides))
}

// Handler serves slide endpoints.
type Handler struct {
	svc    *Service
	editor Editor
	logger *zap.Logger
}

// NewHandler creates a slide handler.
func NewHandler(svc *Service, editor Editor, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, editor: editor, logger: logger}
}

// Generate handles POST /webinars/:id/slides/generate. The deck is built in
// the background; progress is available from Generation and over the
// webinar's realtime channel.
func (h *Handler) Generate(c *gin.Context) {
	snap, err := h.svc.Start(c.Request.Context(), webinars.FromContext(c))
	switch {
	case errors.Is(err, workspace.ErrBusy):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrNoKnowledgeBase):
		response.BadRequest(c, "Please create a knowledge base before generating slides")
	case err != nil:
		h.logger.Error("start slide generation", zap.Error(err))
		response.Internal(c, "failed to start slide generation")
	default:
		response.Accepted(c, snap)
	}
}

// Generation handles GET /webinars/:id/slides/generation.
func (h *Handler) Generation(c *gin.Context) {
	snap, err := h.svc.Status(c.Request.Context(), webinars.FromContext(c).ID)
	if err != nil {
		response.Internal(c, "failed to load generation status")
		return
	}
	response.OK(c, snap)
}

// List handles GET /webinars/:id/slides.
func (h *Handler) List(c *gin.Context) {
	list, err := h.editor.List(c.Request.Context(), webinars.FromContext(c).ID)
	if err != nil {
		response.Internal(c, "failed to list slides")
		return
	}
	response.OK(c, list)
}

// Save handles PUT /webinars/:id/slides.
func (h *Handler) Save(c *gin.Context) {
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	w := webinars.FromContext(c)
	list := make([]models.Slide, len(req.Slides))
	for i, s := range req.Slides {
		list[i] = models.Slide{
			ID: s.ID, WebinarID: w.ID, Title: s.Title, Subtitle: s.Subtitle, Content: s.Content,
			Type: s.Type, Notes: s.Notes, Script: s.Script, OrderIndex: s.OrderIndex,
		}
	}
	saved, err := h.svc.Save(c.Request.Context(), w, list)
	switch {
	case errors.Is(err, models.ErrSlideOrder):
		response.BadRequest(c, err.Error())
	case errors.Is(err, workspace.ErrBusy):
		response.Conflict(c, err.Error())
	case err != nil:
		h.logger.Error("save slides", zap.Error(err))
		response.Internal(c, "failed to save slides")
	default:
		response.OK(c, saved)
	}
}

// Update handles PATCH /webinars/:id/slides/:slideId.
func (h *Handler) Update(c *gin.Context) {
	slideID, err := uuid.Parse(c.Param("slideId"))
	if err != nil {
		response.BadRequest(c, "invalid slide id")
		return
	}
	var p Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	webinarID := webinars.FromContext(c).ID
	var s *models.Slide
	err = h.svc.Exclusive(c.Request.Context(), webinarID, func(ctx context.Context) error {
		var err error
		s, err = h.editor.Update(ctx, webinarID, slideID, p)
		return err
	})
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, workspace.ErrBusy):
		response.Conflict(c, err.Error())
	case err != nil:
		h.logger.Error("update slide", zap.Error(err))
		response.Internal(c, "failed to update slide")
	default:
		response.OK(c, s)
	}
}
