package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/studio/internal/models"
)

func init() { gin.SetMode(gin.TestMode) }

type memCatalog struct {
	themes  map[uuid.UUID]models.Theme
	avatars map[uuid.UUID]models.Avatar
}

func newMemCatalog() *memCatalog {
	return &memCatalog{themes: map[uuid.UUID]models.Theme{}, avatars: map[uuid.UUID]models.Avatar{}}
}

func (m *memCatalog) ListThemes(context.Context) ([]models.Theme, error) {
	out := []models.Theme{}
	for _, t := range m.themes {
		out = append(out, t)
	}
	return out, nil
}

func (m *memCatalog) CreateTheme(_ context.Context, t *models.Theme) error {
	t.ID = uuid.New()
	m.themes[t.ID] = *t
	return nil
}

func (m *memCatalog) UpdateTheme(_ context.Context, t *models.Theme) error {
	if _, ok := m.themes[t.ID]; !ok {
		return ErrNotFound
	}
	m.themes[t.ID] = *t
	return nil
}

func (m *memCatalog) DeleteTheme(_ context.Context, id uuid.UUID) error {
	if _, ok := m.themes[id]; !ok {
		return ErrNotFound
	}
	delete(m.themes, id)
	return nil
}

func (m *memCatalog) ListAvatars(_ context.Context, g models.Gender) ([]models.Avatar, error) {
	out := []models.Avatar{}
	for _, a := range m.avatars {
		if g == "" || a.Gender == g {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memCatalog) CreateAvatar(_ context.Context, a *models.Avatar) error {
	a.ID = uuid.New()
	m.avatars[a.ID] = *a
	return nil
}

func (m *memCatalog) UpdateAvatar(_ context.Context, a *models.Avatar) error {
	if _, ok := m.avatars[a.ID]; !ok {
		return ErrNotFound
	}
	m.avatars[a.ID] = *a
	return nil
}

func (m *memCatalog) DeleteAvatar(_ context.Context, id uuid.UUID) error {
	if _, ok := m.avatars[id]; !ok {
		return ErrNotFound
	}
	delete(m.avatars, id)
	return nil
}

type fakeMedia struct {
	uploaded []byte
	key      string
}

func (f *fakeMedia) PresignUpload(_ context.Context, key, _ string) (string, error) {
	return "https://signed.example/" + key + "?sig=1", nil
}

func (f *fakeMedia) PublicURL(key string) string { return "https://media.example/" + key }

func (f *fakeMedia) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	f.key = key
	f.uploaded, _ = io.ReadAll(body)
	return f.PublicURL(key), nil
}

func router(h *Handler) *gin.Engine {
	r := gin.New()
	r.GET("/themes", h.ListThemes)
	r.GET("/avatars", h.ListAvatars)
	admin := r.Group("/admin")
	admin.POST("/themes", h.CreateTheme)
	admin.PUT("/themes/:id", h.UpdateTheme)
	admin.DELETE("/themes/:id", h.DeleteTheme)
	admin.POST("/avatars", h.CreateAvatar)
	admin.PUT("/avatars/:id", h.UpdateAvatar)
	admin.DELETE("/avatars/:id", h.DeleteAvatar)
	admin.POST("/media/upload-url", h.UploadURL)
	admin.POST("/media", h.Upload)
	return r
}

func send(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func validTheme() ThemeRequest {
	return ThemeRequest{
		Name:              "Midnight",
		Description:       "Dark, high contrast",
		PreviewURL:        "https://media.example/themes/midnight.png",
		OpeningTemplateID: "open-1",
		AgendaTemplateID:  "agenda-1",
		ContentTemplateID: "content-1",
		OfferTemplateID:   "offer-1",
		ClosingTemplateID: "close-1",
	}
}

func TestThemeCRUD(t *testing.T) {
	store := newMemCatalog()
	r := router(NewHandler(store, nil, nil))

	bad := validTheme()
	bad.AgendaTemplateID = ""
	assert.Equal(t, http.StatusBadRequest, send(r, http.MethodPost, "/admin/themes", bad).Code)

	rec := send(r, http.MethodPost, "/admin/themes", validTheme())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data models.Theme `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Data.ID.String()

	upd := validTheme()
	upd.Name = "Daylight"
	assert.Equal(t, http.StatusOK, send(r, http.MethodPut, "/admin/themes/"+id, upd).Code)
	assert.Equal(t, "Daylight", store.themes[created.Data.ID].Name)
	assert.Equal(t, http.StatusNotFound, send(r, http.MethodPut, "/admin/themes/"+uuid.NewString(), upd).Code)

	assert.Equal(t, http.StatusOK, send(r, http.MethodGet, "/themes", nil).Code)
	assert.Equal(t, http.StatusNoContent, send(r, http.MethodDelete, "/admin/themes/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, send(r, http.MethodDelete, "/admin/themes/"+id, nil).Code)
}

func TestAvatarValidationAndFilter(t *testing.T) {
	store := newMemCatalog()
	r := router(NewHandler(store, nil, nil))
	req := AvatarRequest{
		Name:             "Ava",
		ExternalAvatarID: "ext-1",
		PreviewVideoURL:  "https://media.example/a.mp4",
		PreviewPhotoURL:  "https://media.example/a.png",
		Gender:           "other",
	}
	assert.Equal(t, http.StatusBadRequest, send(r, http.MethodPost, "/admin/avatars", req).Code)

	req.Gender = models.GenderFemale
	require.Equal(t, http.StatusCreated, send(r, http.MethodPost, "/admin/avatars", req).Code)

	rec := send(r, http.MethodGet, "/avatars?gender=male", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
	assert.Equal(t, http.StatusBadRequest, send(r, http.MethodGet, "/avatars?gender=x", nil).Code)
}

func TestUploadURL(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable,
		send(router(NewHandler(newMemCatalog(), nil, nil)), http.MethodPost, "/admin/media/upload-url",
			UploadURLRequest{Folder: "themes", ContentType: "image/png"}).Code)

	r := router(NewHandler(newMemCatalog(), &fakeMedia{}, nil))
	rec := send(r, http.MethodPost, "/admin/media/upload-url", UploadURLRequest{Folder: "themes", ContentType: "image/png"})
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body.Data["key"], "themes/"))
	assert.Contains(t, body.Data["upload_url"], "sig=1")
	assert.Equal(t, "https://media.example/"+body.Data["key"], body.Data["public_url"])

	assert.Equal(t, http.StatusBadRequest,
		send(r, http.MethodPost, "/admin/media/upload-url", UploadURLRequest{Folder: "themes", ContentType: "text/html"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		send(r, http.MethodPost, "/admin/media/upload-url", UploadURLRequest{Folder: "ads", ContentType: "image/png"}).Code)
}

func TestUploadMultipart(t *testing.T) {
	media := &fakeMedia{}
	r := router(NewHandler(newMemCatalog(), media, nil))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("folder", "avatars"))
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="ava.mp4"`)
	hdr.Set("Content-Type", "video/mp4")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = part.Write([]byte("fake video"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "fake video", string(media.uploaded))
	assert.True(t, strings.HasSuffix(media.key, ".mp4"))
}
