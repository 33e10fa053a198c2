package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTokenBucketLimiter_Allow(t *testing.T) {
	l := NewTokenBucketLimiter(1, 2, 0)
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, info := l.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 1, info.Remaining)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
	ok, info = l.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, 0, info.Remaining)

	ok, _ = l.Allow("b")
	assert.True(t, ok, "keys have independent buckets")

	now = now.Add(time.Second)
	ok, _ = l.Allow("a")
	assert.True(t, ok, "one token refills per second")
}

func TestTokenBucketLimiter_DropIdle(t *testing.T) {
	l := NewTokenBucketLimiter(10, 5, time.Minute)
	defer l.Stop()
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("a")
	require.Equal(t, 1, l.BucketCount())
	now = now.Add(2 * time.Minute)
	l.dropIdle()
	assert.Equal(t, 0, l.BucketCount())
	l.Stop()
}

func TestRateLimit_Middleware(t *testing.T) {
	l := NewTokenBucketLimiter(0.001, 1, 0)
	r := gin.New()
	r.Use(RateLimit(l, "/healthz"))
	r.GET("/v1/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	first := do("/v1/x")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))

	second := do("/v1/x")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "RATE_LIMITED")

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do("/healthz").Code)
	}
}
