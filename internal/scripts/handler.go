package scripts

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/studio/internal/generation"
	"github.com/aura-webinar/studio/internal/slides"
	"github.com/aura-webinar/studio/internal/webinars"
	"github.com/aura-webinar/studio/internal/workflow"
	"github.com/aura-webinar/studio/internal/workspace"
	"github.com/aura-webinar/studio/pkg/response"
)

// ScriptRequest is the body for PUT /webinars/:id/slides/:slideId/script.
type ScriptRequest struct {
	Script string `json:"script"`
}

// Handler serves script endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a script handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workflow.ErrStepLocked):
		response.Conflict(c, workflow.ErrStepLocked.Error())
	case errors.Is(err, workspace.ErrBusy):
		response.Conflict(c, err.Error())
	case errors.Is(err, slides.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrMissingScripts):
		response.BadRequest(c, err.Error())
	default:
		status, msg := generation.HTTPStatus(err)
		if status >= 500 {
			h.logger.Error("script request failed", zap.String("path", c.FullPath()), zap.Error(err))
		}
		c.JSON(status, response.Body{Success: false, Error: msg})
	}
}

func slideID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("slideId"))
	if err != nil {
		response.BadRequest(c, "invalid slide id")
		return uuid.Nil, false
	}
	return id, true
}

// Generate handles POST /webinars/:id/slides/:slideId/script/generate.
func (h *Handler) Generate(c *gin.Context) {
	id, ok := slideID(c)
	if !ok {
		return
	}
	sl, err := h.svc.Generate(c.Request.Context(), webinars.FromContext(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, sl)
}

// Put handles PUT /webinars/:id/slides/:slideId/script.
func (h *Handler) Put(c *gin.Context) {
	id, ok := slideID(c)
	if !ok {
		return
	}
	var req ScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	sl, err := h.svc.Put(c.Request.Context(), webinars.FromContext(c), id, req.Script)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, sl)
}

// Complete handles POST /webinars/:id/scripting/complete.
func (h *Handler) Complete(c *gin.Context) {
	if err := h.svc.Complete(c.Request.Context(), webinars.FromContext(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"scripting_completed": true})
}
