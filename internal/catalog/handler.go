// Package catalog serves the admin-managed themes and avatars and signs
// uploads of their preview media.
package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/pkg/response"
	"github.com/aura-webinar/studio/pkg/storage"
)

// Store persists the catalog.
type Store interface {
	ListThemes(ctx context.Context) ([]models.Theme, error)
	CreateTheme(ctx context.Context, t *models.Theme) error
	UpdateTheme(ctx context.Context, t *models.Theme) error
	DeleteTheme(ctx context.Context, id uuid.UUID) error
	ListAvatars(ctx context.Context, gender models.Gender) ([]models.Avatar, error)
	CreateAvatar(ctx context.Context, a *models.Avatar) error
	UpdateAvatar(ctx context.Context, a *models.Avatar) error
	DeleteAvatar(ctx context.Context, id uuid.UUID) error
}

// Media stores preview files.
type Media interface {
	PresignUpload(ctx context.Context, key, contentType string) (string, error)
	PublicURL(key string) string
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// ThemeRequest is the body for creating or replacing a theme.
type ThemeRequest struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	PreviewURL        string `json:"preview_url"`
	OpeningTemplateID string `json:"opening_template_id"`
	AgendaTemplateID  string `json:"agenda_template_id"`
	ContentTemplateID string `json:"content_template_id"`
	OfferTemplateID   string `json:"offer_template_id"`
	ClosingTemplateID string `json:"closing_template_id"`
}

// Validate requires every field.
func (r ThemeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Description, validation.Required),
		validation.Field(&r.PreviewURL, validation.Required, is.URL),
		validation.Field(&r.OpeningTemplateID, validation.Required),
		validation.Field(&r.AgendaTemplateID, validation.Required),
		validation.Field(&r.ContentTemplateID, validation.Required),
		validation.Field(&r.OfferTemplateID, validation.Required),
		validation.Field(&r.ClosingTemplateID, validation.Required),
	)
}

func (r ThemeRequest) theme(id uuid.UUID) *models.Theme {
	return &models.Theme{
		ID:                id,
		Name:              r.Name,
		Description:       r.Description,
		PreviewURL:        r.PreviewURL,
		OpeningTemplateID: r.OpeningTemplateID,
		AgendaTemplateID:  r.AgendaTemplateID,
		ContentTemplateID: r.ContentTemplateID,
		OfferTemplateID:   r.OfferTemplateID,
		ClosingTemplateID: r.ClosingTemplateID,
	}
}

// AvatarRequest is the body for creating or replacing an avatar.
type AvatarRequest struct {
	Name             string        `json:"name"`
	ExternalAvatarID string        `json:"external_avatar_id"`
	PreviewVideoURL  string        `json:"preview_video_url"`
	PreviewPhotoURL  string        `json:"preview_photo_url"`
	Gender           models.Gender `json:"gender"`
}

// Validate requires every field and a known gender.
func (r AvatarRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.ExternalAvatarID, validation.Required),
		validation.Field(&r.PreviewVideoURL, validation.Required, is.URL),
		validation.Field(&r.PreviewPhotoURL, validation.Required, is.URL),
		validation.Field(&r.Gender, validation.Required, validation.In(models.GenderMale, models.GenderFemale)),
	)
}

func (r AvatarRequest) avatar(id uuid.UUID) *models.Avatar {
	return &models.Avatar{
		ID:               id,
		Name:             r.Name,
		ExternalAvatarID: r.ExternalAvatarID,
		PreviewVideoURL:  r.PreviewVideoURL,
		PreviewPhotoURL:  r.PreviewPhotoURL,
		Gender:           r.Gender,
	}
}

// UploadURLRequest is the body for POST /admin/media/upload-url.
type UploadURLRequest struct {
	Folder      string `json:"folder" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// Handler serves catalog endpoints.
type Handler struct {
	store  Store
	media  Media
	logger *zap.Logger
}

// NewHandler creates a catalog handler. media may be nil when no bucket is
// configured; the media endpoints then answer 503.
func NewHandler(store Store, media Media, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, media: media, logger: logger}
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, err.Error())
		return
	}
	h.logger.Error(op, zap.Error(err))
	response.Internal(c, "failed to "+op)
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// bind decodes and validates a JSON body, answering 400 on failure.
func bind(c *gin.Context, req validation.Validatable) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return false
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return false
	}
	return true
}

// ListThemes handles GET /themes.
func (h *Handler) ListThemes(c *gin.Context) {
	list, err := h.store.ListThemes(c.Request.Context())
	if err != nil {
		h.fail(c, "list themes", err)
		return
	}
	response.OK(c, list)
}

// CreateTheme handles POST /admin/themes.
func (h *Handler) CreateTheme(c *gin.Context) {
	var req ThemeRequest
	if !bind(c, &req) {
		return
	}
	t := req.theme(uuid.Nil)
	if err := h.store.CreateTheme(c.Request.Context(), t); err != nil {
		h.fail(c, "create theme", err)
		return
	}
	response.Created(c, t)
}

// UpdateTheme handles PUT /admin/themes/:id.
func (h *Handler) UpdateTheme(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ThemeRequest
	if !bind(c, &req) {
		return
	}
	t := req.theme(id)
	if err := h.store.UpdateTheme(c.Request.Context(), t); err != nil {
		h.fail(c, "update theme", err)
		return
	}
	response.OK(c, t)
}

// DeleteTheme handles DELETE /admin/themes/:id.
func (h *Handler) DeleteTheme(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteTheme(c.Request.Context(), id); err != nil {
		h.fail(c, "delete theme", err)
		return
	}
	response.NoContent(c)
}

// ListAvatars handles GET /avatars?gender=.
func (h *Handler) ListAvatars(c *gin.Context) {
	gender := models.Gender(c.Query("gender"))
	if gender != "" && gender != models.GenderMale && gender != models.GenderFemale {
		response.BadRequest(c, "gender must be male or female")
		return
	}
	list, err := h.store.ListAvatars(c.Request.Context(), gender)
	if err != nil {
		h.fail(c, "list avatars", err)
		return
	}
	response.OK(c, list)
}

// CreateAvatar handles POST /admin/avatars.
func (h *Handler) CreateAvatar(c *gin.Context) {
	var req AvatarRequest
	if !bind(c, &req) {
		return
	}
	a := req.avatar(uuid.Nil)
	if err := h.store.CreateAvatar(c.Request.Context(), a); err != nil {
		h.fail(c, "create avatar", err)
		return
	}
	response.Created(c, a)
}

// UpdateAvatar handles PUT /admin/avatars/:id.
func (h *Handler) UpdateAvatar(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req AvatarRequest
	if !bind(c, &req) {
		return
	}
	a := req.avatar(id)
	if err := h.store.UpdateAvatar(c.Request.Context(), a); err != nil {
		h.fail(c, "update avatar", err)
		return
	}
	response.OK(c, a)
}

// DeleteAvatar handles DELETE /admin/avatars/:id.
func (h *Handler) DeleteAvatar(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteAvatar(c.Request.Context(), id); err != nil {
		h.fail(c, "delete avatar", err)
		return
	}
	response.NoContent(c)
}

// UploadURL handles POST /admin/media/upload-url. The client PUTs the file
// to upload_url, then stores public_url on the theme or avatar.
func (h *Handler) UploadURL(c *gin.Context) {
	if h.media == nil {
		response.ServiceUnavailable(c, "media storage is not configured")
		return
	}
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ct, err := storage.MediaContentType(req.ContentType, "")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	key, err := storage.MediaKey(req.Folder, ct)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	url, err := h.media.PresignUpload(c.Request.Context(), key, ct)
	if err != nil {
		h.fail(c, "sign upload", err)
		return
	}
	response.OK(c, gin.H{
		"upload_url":   url,
		"public_url":   h.media.PublicURL(key),
		"key":          key,
		"content_type": ct,
	})
}

// Upload handles POST /admin/media: a multipart "file" streamed to storage
// by the server, for clients that cannot PUT to a signed URL.
func (h *Handler) Upload(c *gin.Context) {
	if h.media == nil {
		response.ServiceUnavailable(c, "media storage is not configured")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxMediaFileSize+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if fh.Size > storage.MaxMediaFileSize {
		response.BadRequest(c, "file is too large")
		return
	}
	ct, err := storage.MediaContentType(fh.Header.Get("Content-Type"), fh.Filename)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	key, err := storage.MediaKey(c.PostForm("folder"), ct)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, "read upload", err)
		return
	}
	defer f.Close()
	url, err := h.media.Upload(c.Request.Context(), key, ct, f, fh.Size)
	if err != nil {
		h.fail(c, "upload media", err)
		return
	}
	response.Created(c, gin.H{"url": url, "key": key, "content_type": ct})
}
