package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimitMiddleware_PerUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewKeyedRateLimiter(0, 2)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ctxUserID, c.GetHeader("X-User"))
		c.Next()
	})
	r.POST("/orders", RateLimitMiddleware(limiter, ByUser), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("u1"))
	assert.Equal(t, http.StatusOK, do("u1"))
	assert.Equal(t, http.StatusTooManyRequests, do("u1"))
	// 不同用户各自独立
	assert.Equal(t, http.StatusOK, do("u2"))
}

func TestKeyedRateLimiter_Sweep(t *testing.T) {
	now := time.Now()
	limiter := NewKeyedRateLimiter(1, 1)
	limiter.now = func() time.Time { return now }

	limiter.Allow("a")
	now = now.Add(10 * time.Minute)
	limiter.Allow("b")

	assert.Equal(t, 1, limiter.Sweep(5*time.Minute))
	assert.Len(t, limiter.entries, 1)
	assert.Contains(t, limiter.entries, "b")
}
