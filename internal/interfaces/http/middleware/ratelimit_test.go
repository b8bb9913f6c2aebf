package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeLimiter struct {
	allowed bool
	err     error
	lastKey string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	f.lastKey = key
	return f.allowed, f.err
}

func newRateLimitRouter(cfg RateLimitConfig, limiter RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", "user-1")
	})
	r.Use(RateLimit(cfg, limiter))
	r.POST("/v1/projects/p1/orchestrate", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRateLimitBlocksWhenExceeded(t *testing.T) {
	limiter := &fakeLimiter{allowed: false}
	r := newRateLimitRouter(RateLimitConfig{Enabled: true, RequestsPerSecond: 10}, limiter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/projects/p1/orchestrate", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	// 限流键按 user_id 分桶
	assert.Contains(t, limiter.lastKey, "user-1")
}

func TestRateLimitPassesThroughOnLimiterFailure(t *testing.T) {
	limiter := &fakeLimiter{allowed: false, err: assert.AnError}
	r := newRateLimitRouter(RateLimitConfig{Enabled: true, RequestsPerSecond: 10}, limiter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/projects/p1/orchestrate", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitDisabledSkipsLimiter(t *testing.T) {
	limiter := &fakeLimiter{allowed: false}
	r := newRateLimitRouter(RateLimitConfig{Enabled: false}, limiter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/projects/p1/orchestrate", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, limiter.lastKey)
}
