package webinars

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-webinar/studio/internal/middleware"
	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/internal/workflow"
	"github.com/aura-webinar/studio/pkg/response"
)

// ContextWebinar is the context key for the webinar loaded by RequireOwner.
const ContextWebinar = "webinar"

// Loader fetches a webinar by id.
type Loader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Webinar, error)
}

// RequireOwner loads the :id webinar and lets the request through only for
// its owner. Call after JWT. Webinars owned by someone else look missing.
func RequireOwner(webinars Loader) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.Abort(c, http.StatusBadRequest, "invalid webinar id")
			return
		}
		w, err := webinars.GetByID(c.Request.Context(), id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			response.Abort(c, http.StatusInternalServerError, "failed to load webinar")
			return
		}
		if w == nil || w.UserID != middleware.UserID(c) {
			response.Abort(c, http.StatusNotFound, "webinar not found")
			return
		}
		c.Set(ContextWebinar, w)
		c.Next()
	}
}

// FromContext returns the webinar loaded by RequireOwner.
func FromContext(c *gin.Context) *models.Webinar {
	return c.MustGet(ContextWebinar).(*models.Webinar)
}

// SlideCounter reports how many slides a webinar has.
type SlideCounter interface {
	SlideCount(ctx context.Context, webinarID uuid.UUID) (int, error)
}

// WorkflowState derives the tracker input from a webinar and its slides.
func WorkflowState(ctx context.Context, slides SlideCounter, w *models.Webinar) (workflow.State, error) {
	n, err := slides.SlideCount(ctx, w.ID)
	if err != nil {
		return workflow.State{}, err
	}
	return workflow.State{
		SlideCount:         n,
		ThemeSelected:      w.ThemeID != nil,
		ScriptingCompleted: w.ScriptingCompleted,
		AvatarSelected:     w.AvatarID != nil,
	}, nil
}

// CanWatch reports whether userID owns webinarID. Used to authorise realtime
// subscriptions.
func CanWatch(webinars Loader) func(ctx context.Context, userID, webinarID uuid.UUID) bool {
	return func(ctx context.Context, userID, webinarID uuid.UUID) bool {
		w, err := webinars.GetByID(ctx, webinarID)
		return err == nil && w.UserID == userID
	}
}
