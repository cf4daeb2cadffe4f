// Package admin serves the user management surface reserved for admins.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/studio/internal/auth"
	"github.com/aura-webinar/studio/internal/middleware"
	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/pkg/response"
)

// Store changes users.
type Store interface {
	ListUsers(ctx context.Context, limit, offset int) ([]UserSummary, error)
	UpdateUser(ctx context.Context, id uuid.UUID, metadata json.RawMessage) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	PutSettings(ctx context.Context, id uuid.UUID, maxWebinars int) (*models.UserSettings, error)
}

// WorkspaceClearer drops the workspace of a deleted user.
type WorkspaceClearer interface {
	Clear(ctx context.Context, userID uuid.UUID) error
}

// UpdateUserRequest is the body for PATCH /admin/users/:id.
type UpdateUserRequest struct {
	Metadata json.RawMessage `json:"user_metadata"`
}

// Validate requires a JSON object.
func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Metadata, validation.Required, validation.By(jsonObject)),
	)
}

func jsonObject(v interface{}) error {
	raw, _ := v.(json.RawMessage)
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return errors.New("must be a JSON object")
	}
	return nil
}

// SettingsRequest is the body for PUT /admin/users/:id/settings.
type SettingsRequest struct {
	MaxWebinars *int `json:"max_webinars"`
}

// Validate requires a non-negative quota.
func (r SettingsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.MaxWebinars, validation.NotNil, validation.Min(0)),
	)
}

// Handler serves admin user endpoints.
type Handler struct {
	store       Store
	workspace   WorkspaceClearer
	adminDomain string
	logger      *zap.Logger
}

// NewHandler creates an admin handler.
func NewHandler(store Store, workspace WorkspaceClearer, adminDomain string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, workspace: workspace, adminDomain: adminDomain, logger: logger}
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, err.Error())
		return
	}
	h.logger.Error(op, zap.Error(err))
	response.Internal(c, "failed to "+op)
}

func userID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return uuid.Nil, false
	}
	return id, true
}

// ListUsers handles GET /admin/users?limit=&offset=.
func (h *Handler) ListUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit = min(max(limit, 1), 200)
	offset = max(offset, 0)

	users, err := h.store.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, "list users", err)
		return
	}
	for i := range users {
		users[i].IsAdmin = auth.IsAdminEmail(users[i].Email, h.adminDomain)
	}
	response.OK(c, users)
}

// UpdateUser handles PATCH /admin/users/:id.
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.store.UpdateUser(c.Request.Context(), id, req.Metadata); err != nil {
		h.fail(c, "update user", err)
		return
	}
	response.OK(c, gin.H{"id": id, "user_metadata": req.Metadata})
}

// DeleteUser handles DELETE /admin/users/:id. Admins cannot delete themselves.
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	if id == middleware.UserID(c) {
		response.BadRequest(c, "you cannot delete your own account")
		return
	}
	if err := h.store.DeleteUser(c.Request.Context(), id); err != nil {
		h.fail(c, "delete user", err)
		return
	}
	if h.workspace != nil {
		if err := h.workspace.Clear(c.Request.Context(), id); err != nil {
			h.logger.Warn("clear workspace of deleted user", zap.String("user_id", id.String()), zap.Error(err))
		}
	}
	h.logger.Info("user deleted", zap.String("user_id", id.String()), zap.String("by", middleware.UserID(c).String()))
	response.NoContent(c)
}

// PutSettings handles PUT /admin/users/:id/settings.
func (h *Handler) PutSettings(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	s, err := h.store.PutSettings(c.Request.Context(), id, *req.MaxWebinars)
	if err != nil {
		h.fail(c, "update settings", err)
		return
	}
	response.OK(c, s)
}
