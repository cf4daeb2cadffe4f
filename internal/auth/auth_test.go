package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/internal/realtime"
	"github.com/aura-webinar/studio/pkg/redis"
)

func init() { gin.SetMode(gin.TestMode) }

type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (m *memUsers) Create(_ context.Context, email, hash, fullName string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	if _, ok := m.users[email]; ok {
		return nil, ErrEmailTaken
	}
	u := &models.User{ID: uuid.New(), Email: email, Password: hash, FullName: fullName}
	m.users[email] = u
	return u, nil
}

type recordedEvent struct{ topic, event string }

type recorder struct {
	mu      sync.Mutex
	events  []recordedEvent
	cleared []uuid.UUID
}

func (r *recorder) Publish(topic, event string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{topic, event})
}

func (r *recorder) Clear(_ context.Context, userID uuid.UUID) error {
	r.cleared = append(r.cleared, userID)
	return nil
}

func withClaims(sessions *Sessions, next gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if len(token) > 7 {
			token = token[7:]
		}
		claims, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(ContextClaims, claims)
		next(c)
	}
}

func setup(t *testing.T) (*gin.Engine, *memUsers, *recorder) {
	t.Helper()
	users := &memUsers{}
	rec := &recorder{}
	sessions := NewSessions(NewJWTService("test-secret", 1), redis.NewMemoryKV())
	h := NewHandler(users, sessions, rec, rec, "thementorprogram.xyz", nil)

	r := gin.New()
	r.POST("/auth/signup", h.SignUp)
	r.POST("/auth/signin", h.SignIn)
	r.POST("/auth/signout", withClaims(sessions, h.SignOut))
	r.GET("/auth/session", withClaims(sessions, h.Session))
	return r, users, rec
}

func do(r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type tokenBody struct {
	Success bool          `json:"success"`
	Data    TokenResponse `json:"data"`
}

func TestSignUpSignInSignOut(t *testing.T) {
	r, _, rec := setup(t)

	w := do(r, http.MethodPost, "/auth/signup", "", SignUpRequest{Email: "Ada@TheMentorProgram.xyz", Password: "secret1", FullName: "Ada"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var signup tokenBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signup))
	assert.True(t, signup.Data.User.IsAdmin)
	assert.Equal(t, "ada@thementorprogram.xyz", signup.Data.User.Email)

	w = do(r, http.MethodPost, "/auth/signup", "", SignUpRequest{Email: "ada@thementorprogram.xyz", Password: "secret1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/auth/signin", "", SignInRequest{Email: "ada@thementorprogram.xyz", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/auth/signin", "", SignInRequest{Email: "ada@thementorprogram.xyz", Password: "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	var signin tokenBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signin))
	token := signin.Data.Token

	w = do(r, http.MethodGet, "/auth/session", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/auth/signout", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// The revoked token no longer opens a session.
	w = do(r, http.MethodGet, "/auth/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	userID := signup.Data.User.ID
	assert.Equal(t, []uuid.UUID{userID}, rec.cleared)
	assert.Equal(t, []recordedEvent{
		{realtime.UserTopic(userID), realtime.EventSignedIn},
		{realtime.UserTopic(userID), realtime.EventSignedIn},
		{realtime.UserTopic(userID), realtime.EventSignedOut},
	}, rec.events)
}

func TestSignInRegularUserIsNotAdmin(t *testing.T) {
	r, users, _ := setup(t)
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	_, err = users.Create(context.Background(), "bob@example.com", hash, "Bob")
	require.NoError(t, err)

	w := do(r, http.MethodPost, "/auth/signin", "", SignInRequest{Email: "bob@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	var body tokenBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Data.User.IsAdmin)
}

func TestIsAdminEmail(t *testing.T) {
	tests := []struct {
		email, domain string
		want          bool
	}{
		{"a@thementorprogram.xyz", "thementorprogram.xyz", true},
		{"A@TheMentorProgram.XYZ", "@thementorprogram.xyz", true},
		{"a@evilthementorprogram.xyz", "thementorprogram.xyz", false},
		{"a@thementorprogram.xyz.evil", "thementorprogram.xyz", false},
		{"a@thementorprogram.xyz", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsAdminEmail(tt.email, tt.domain), tt.email)
	}
}

func TestJWTRejectsForeignAndExpiredTokens(t *testing.T) {
	svc := NewJWTService("one", 1)
	token, claims, err := svc.Generate(uuid.New(), "a@b.c")
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	got, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, claims.UserID, got.UserID)

	_, err = NewJWTService("two", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
