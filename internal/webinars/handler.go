package webinars

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/studio/internal/middleware"
	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/internal/realtime"
	"github.com/aura-webinar/studio/internal/workflow"
	"github.com/aura-webinar/studio/internal/workspace"
	"github.com/aura-webinar/studio/pkg/response"
)

// Store is the webinar persistence the handler needs.
type Store interface {
	Loader
	SlideCounter
	CreateWithinQuota(ctx context.Context, w *models.Webinar) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Webinar, error)
	Update(ctx context.Context, id uuid.UUID, name, description *string) (*models.Webinar, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetTheme(ctx context.Context, id, themeID uuid.UUID) (*models.Webinar, error)
	SetAvatar(ctx context.Context, id, avatarID uuid.UUID) (*models.Webinar, error)
}

// KnowledgeBases loads a webinar's knowledge base, nil when none exists yet.
type KnowledgeBases interface {
	Get(ctx context.Context, webinarID uuid.UUID) (*models.KnowledgeBase, error)
}

// Workspaces is the per-user workspace state.
type Workspaces interface {
	Get(ctx context.Context, userID uuid.UUID) (*workspace.State, error)
	Select(ctx context.Context, userID, webinarID uuid.UUID, kb *models.KnowledgeBase) (*workspace.State, error)
	Forget(ctx context.Context, userID, webinarID uuid.UUID) error
}

// Notifier publishes realtime events.
type Notifier interface {
	Publish(topic, event string, payload interface{})
}

// CreateRequest is the body for POST /webinars.
type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateRequest is the body for PATCH /webinars/:id.
type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Validate checks the fields that are present.
func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty.Error("name cannot be empty"), validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Length(0, 5000)),
	)
}

// SelectionRequest is the body for PUT /webinars/:id/theme and /avatar.
type SelectionRequest struct {
	ID uuid.UUID `json:"id" binding:"required"`
}

// Handler handles webinar HTTP endpoints.
type Handler struct {
	store     Store
	kbs       KnowledgeBases
	workspace Workspaces
	notifier  Notifier
	logger    *zap.Logger
}

// NewHandler creates a webinar handler.
func NewHandler(store Store, kbs KnowledgeBases, ws Workspaces, notifier Notifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, kbs: kbs, workspace: ws, notifier: notifier, logger: logger}
}

// List handles GET /webinars.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.ListByUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Internal(c, "failed to list webinars")
		return
	}
	response.OK(c, list)
}

// Create handles POST /webinars, subject to the user's webinar quota.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	w := &models.Webinar{
		UserID:      middleware.UserID(c),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	}
	if w.Name == "" {
		w.Name = models.DefaultWebinarName
	}
	err := h.store.CreateWithinQuota(c.Request.Context(), w)
	if errors.Is(err, ErrQuotaExceeded) {
		response.Forbidden(c, "You have reached the maximum number of webinars for your account")
		return
	}
	if err != nil {
		h.logger.Error("create webinar", zap.Error(err))
		response.Internal(c, "failed to create webinar")
		return
	}
	response.Created(c, w)
}

// Get handles GET /webinars/:id.
func (h *Handler) Get(c *gin.Context) {
	response.OK(c, FromContext(c))
}

// Update handles PATCH /webinars/:id.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	w, err := h.store.Update(c.Request.Context(), FromContext(c).ID, req.Name, req.Description)
	if err != nil {
		response.Internal(c, "failed to update webinar")
		return
	}
	h.updated(w)
	response.OK(c, w)
}

// Delete handles DELETE /webinars/:id. The workspace stops pointing at it.
func (h *Handler) Delete(c *gin.Context) {
	w := FromContext(c)
	ctx := c.Request.Context()
	if err := h.store.Delete(ctx, w.ID); err != nil && !errors.Is(err, ErrNotFound) {
		response.Internal(c, "failed to delete webinar")
		return
	}
	if err := h.workspace.Forget(ctx, w.UserID, w.ID); err != nil {
		h.logger.Warn("forget deleted webinar", zap.String("webinar_id", w.ID.String()), zap.Error(err))
	}
	response.NoContent(c)
}

// Steps handles GET /webinars/:id/steps.
func (h *Handler) Steps(c *gin.Context) {
	st, ok := h.state(c)
	if !ok {
		return
	}
	response.OK(c, workflow.Classify(st))
}

// Activate handles POST /webinars/:id/steps/:step/activate. Locked steps are
// refused and nothing changes.
func (h *Handler) Activate(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		response.BadRequest(c, "invalid step")
		return
	}
	st, ok := h.state(c)
	if !ok {
		return
	}
	step := workflow.Step(n)
	switch err := workflow.Activate(st, step); {
	case errors.Is(err, workflow.ErrUnknownStep):
		response.BadRequest(c, "unknown step")
		return
	case errors.Is(err, workflow.ErrStepLocked):
		response.Conflict(c, workflow.ErrStepLocked.Error())
		return
	}
	response.OK(c, gin.H{"active_step": step, "steps": workflow.Classify(st)})
}

// SetTheme handles PUT /webinars/:id/theme.
func (h *Handler) SetTheme(c *gin.Context) {
	h.setSelection(c, workflow.StepTheme, h.store.SetTheme)
}

// SetAvatar handles PUT /webinars/:id/avatar.
func (h *Handler) SetAvatar(c *gin.Context) {
	h.setSelection(c, workflow.StepAvatar, h.store.SetAvatar)
}

func (h *Handler) setSelection(c *gin.Context, step workflow.Step, set func(context.Context, uuid.UUID, uuid.UUID) (*models.Webinar, error)) {
	var req SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	st, ok := h.state(c)
	if !ok {
		return
	}
	if err := workflow.Activate(st, step); err != nil {
		response.Conflict(c, workflow.ErrStepLocked.Error())
		return
	}
	w, err := set(c.Request.Context(), FromContext(c).ID, req.ID)
	if errors.Is(err, ErrCatalogReference) {
		response.NotFound(c, "selection not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to save selection")
		return
	}
	h.updated(w)
	response.OK(c, w)
}

// Select handles POST /webinars/:id/select, making it the workspace's current
// webinar.
func (h *Handler) Select(c *gin.Context) {
	w := FromContext(c)
	ctx := c.Request.Context()
	kb, err := h.kbs.Get(ctx, w.ID)
	if err != nil {
		response.Internal(c, "failed to load knowledge base")
		return
	}
	st, err := h.workspace.Select(ctx, w.UserID, w.ID, kb)
	if err != nil {
		response.Internal(c, "failed to update workspace")
		return
	}
	response.OK(c, st)
}

// Workspace handles GET /workspace.
func (h *Handler) Workspace(c *gin.Context) {
	st, err := h.workspace.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Internal(c, "failed to load workspace")
		return
	}
	response.OK(c, st)
}

func (h *Handler) state(c *gin.Context) (workflow.State, bool) {
	st, err := WorkflowState(c.Request.Context(), h.store, FromContext(c))
	if err != nil {
		response.Internal(c, "failed to load webinar progress")
		return workflow.State{}, false
	}
	return st, true
}

func (h *Handler) updated(w *models.Webinar) {
	if h.notifier != nil {
		h.notifier.Publish(realtime.WebinarTopic(w.ID), realtime.EventWebinarUpdated, w)
	}
}
