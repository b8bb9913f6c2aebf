package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-video-ai-api/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(cfg AuthConfig) *gin.Engine {
	r := gin.New()
	r.Use(Auth(cfg))
	r.GET("/v1/projects", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id")})
	})
	r.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		Secret:    "test-secret",
		Issuer:    "z-video-ai",
		SkipPaths: DefaultSkipPaths,
		Enabled:   true,
	}
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	r := newAuthRouter(testAuthConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/projects", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthAcceptsValidAccessToken(t *testing.T) {
	cfg := testAuthConfig()
	r := newAuthRouter(cfg)

	token, err := utils.NewJWTManager(cfg.Secret, cfg.Issuer).
		GenerateToken("user-1", "editor", "access", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-1")
}

func TestAuthRejectsRefreshToken(t *testing.T) {
	cfg := testAuthConfig()
	r := newAuthRouter(cfg)

	token, err := utils.NewJWTManager(cfg.Secret, cfg.Issuer).
		GenerateToken("user-1", "editor", "refresh", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthSkipsHealthPaths(t *testing.T) {
	r := newAuthRouter(testAuthConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthDisabledPassesThrough(t *testing.T) {
	cfg := testAuthConfig()
	cfg.Enabled = false
	r := newAuthRouter(cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/projects", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
