package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/studio/internal/auth"
	"github.com/aura-webinar/studio/pkg/redis"
)

func init() { gin.SetMode(gin.TestMode) }

func router(sessions *auth.Sessions) *gin.Engine {
	r := gin.New()
	r.Use(JWT(sessions, "thementorprogram.xyz"))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c), "admin": c.GetBool(ContextIsAdmin)})
	})
	admin := r.Group("/admin", RequireAdmin("/dashboard"))
	admin.GET("/users", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	sessions := auth.NewSessions(auth.NewJWTService("secret", 1), redis.NewMemoryKV())
	r := router(sessions)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "garbage").Code)

	token, claims, err := sessions.Issue(uuid.New(), "user@example.com")
	require.NoError(t, err)
	w := get(r, "/me", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), claims.UserID.String())

	require.NoError(t, sessions.Revoke(context.Background(), claims))
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", token).Code)
}

func TestRequireAdminRedirects(t *testing.T) {
	sessions := auth.NewSessions(auth.NewJWTService("secret", 1), redis.NewMemoryKV())
	r := router(sessions)

	userToken, _, err := sessions.Issue(uuid.New(), "user@example.com")
	require.NoError(t, err)
	w := get(r, "/admin/users", userToken)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	adminToken, _, err := sessions.Issue(uuid.New(), "staff@thementorprogram.xyz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, get(r, "/admin/users", adminToken).Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS("http://localhost:5173"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBearerToken(t *testing.T) {
	tok, err := bearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	_, err = bearerToken("")
	assert.ErrorIs(t, err, errNoAuthHeader)
	for _, h := range []string{"Basic abc", "Bearer", "Bearer   ", "abc"} {
		_, err = bearerToken(h)
		assert.ErrorIs(t, err, errBadAuthHeader, h)
	}
}
