package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/internal/realtime"
	"github.com/aura-webinar/studio/pkg/response"
)

// SignUpRequest is the body for POST /auth/signup.
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name"`
}

// SignInRequest is the body for POST /auth/signin.
type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      models.UserPublic `json:"user"`
}

// UserStore is the user persistence the handler needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, email, passwordHash, fullName string) (*models.User, error)
}

// WorkspaceClearer tears down per-user workspace state on sign-out.
type WorkspaceClearer interface {
	Clear(ctx context.Context, userID uuid.UUID) error
}

// Notifier pushes auth state changes to the user's realtime channel.
type Notifier interface {
	Publish(topic, event string, payload interface{})
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	users       UserStore
	sessions    *Sessions
	workspace   WorkspaceClearer
	notifier    Notifier
	adminDomain string
	logger      *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(users UserStore, sessions *Sessions, workspace WorkspaceClearer, notifier Notifier, adminDomain string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		users:       users,
		sessions:    sessions,
		workspace:   workspace,
		notifier:    notifier,
		adminDomain: adminDomain,
		logger:      logger,
	}
}

func (h *Handler) public(u *models.User) models.UserPublic {
	return u.ToPublic(IsAdminEmail(u.Email, h.adminDomain))
}

func (h *Handler) notify(userID uuid.UUID, event string) {
	if h.notifier == nil {
		return
	}
	h.notifier.Publish(realtime.UserTopic(userID), event, gin.H{"user_id": userID})
}

func (h *Handler) issue(c *gin.Context, u *models.User) (*TokenResponse, bool) {
	token, claims, err := h.sessions.Issue(u.ID, u.Email)
	if err != nil {
		h.logger.Error("issue session", zap.String("user_id", u.ID.String()), zap.Error(err))
		response.Internal(c, "failed to generate token")
		return nil, false
	}
	return &TokenResponse{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: h.public(u)}, true
}

// SignUp handles POST /auth/signup.
func (h *Handler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hash, err := HashPassword(req.Password)
	if errors.Is(err, ErrPasswordTooLong) {
		response.BadRequest(c, err.Error())
		return
	}
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	user, err := h.users.Create(c.Request.Context(), email, hash, strings.TrimSpace(req.FullName))
	if errors.Is(err, ErrEmailTaken) {
		response.Conflict(c, "email already registered")
		return
	}
	if err != nil {
		h.logger.Error("create user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	resp, ok := h.issue(c, user)
	if !ok {
		return
	}
	h.notify(user.ID, realtime.EventSignedIn)
	response.Created(c, resp)
}

// SignIn handles POST /auth/signin.
func (h *Handler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			h.logger.Error("load user", zap.Error(err))
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !PasswordMatches(user.Password, req.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	resp, ok := h.issue(c, user)
	if !ok {
		return
	}
	h.notify(user.ID, realtime.EventSignedIn)
	response.OK(c, resp)
}

// SignOut handles POST /auth/signout. The session is revoked and the user's
// workspace is torn down.
func (h *Handler) SignOut(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	ctx := c.Request.Context()
	if err := h.sessions.Revoke(ctx, claims); err != nil {
		h.logger.Error("revoke session", zap.String("user_id", claims.UserID.String()), zap.Error(err))
		response.Internal(c, "failed to sign out")
		return
	}
	if h.workspace != nil {
		if err := h.workspace.Clear(ctx, claims.UserID); err != nil {
			h.logger.Warn("clear workspace", zap.String("user_id", claims.UserID.String()), zap.Error(err))
		}
	}
	h.notify(claims.UserID, realtime.EventSignedOut)
	response.NoContent(c)
}

// Session handles GET /auth/session.
func (h *Handler) Session(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if errors.Is(err, ErrNotFound) {
		response.Unauthorized(c, "session user no longer exists")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load session")
		return
	}
	response.OK(c, gin.H{
		"user":       h.public(user),
		"expires_at": claims.ExpiresAt.Time,
	})
}
