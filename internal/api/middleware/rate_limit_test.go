package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func rateLimitRouter(config RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	// Identify the client by header so tests can simulate distinct users.
	router.Use(func(c *gin.Context) {
		if user := c.GetHeader("X-Test-User"); user != "" {
			c.Set(UserIDKey, user)
		}
		c.Next()
	})
	router.Use(RateLimitMiddleware(config))
	router.GET("/limited", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func doLimited(router *gin.Engine, user string) int {
	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder.Code
}

func TestRateLimitMiddleware_BurstThenLimit(t *testing.T) {
	router := rateLimitRouter(RateLimitConfig{Capacity: 3, Refill: time.Hour, MaxClients: 100})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doLimited(router, "user-1"), "request %d within burst", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, doLimited(router, "user-1"))
}

func TestRateLimitMiddleware_PerUserIsolation(t *testing.T) {
	router := rateLimitRouter(RateLimitConfig{Capacity: 1, Refill: time.Hour, MaxClients: 100})

	assert.Equal(t, http.StatusOK, doLimited(router, "user-1"))
	assert.Equal(t, http.StatusTooManyRequests, doLimited(router, "user-1"))

	// A different user has an untouched bucket.
	assert.Equal(t, http.StatusOK, doLimited(router, "user-2"))
}

func TestRateLimitMiddleware_RefillRestoresTokens(t *testing.T) {
	router := rateLimitRouter(RateLimitConfig{Capacity: 1, Refill: 20 * time.Millisecond, MaxClients: 100})

	assert.Equal(t, http.StatusOK, doLimited(router, "user-1"))
	assert.Equal(t, http.StatusTooManyRequests, doLimited(router, "user-1"))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, http.StatusOK, doLimited(router, "user-1"))
}

func TestRateLimitMiddleware_RetryAfterHeader(t *testing.T) {
	router := rateLimitRouter(RateLimitConfig{Capacity: 1, Refill: time.Hour, MaxClients: 100})

	doLimited(router, "user-1")
	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.Header.Set("X-Test-User", "user-1")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	assert.Equal(t, "1", recorder.Header().Get("Retry-After"))
}

func TestBucketCache_EvictsOldestClient(t *testing.T) {
	cache := newBucketCache(2)
	factory := func() *tokenBucket { return newTokenBucket(1, time.Hour) }

	a := cache.get("a", factory)
	cache.get("b", factory)
	cache.get("c", factory) // evicts "a"

	again := cache.get("a", factory)
	assert.NotSame(t, a, again, "evicted client must get a fresh bucket")
	assert.Equal(t, 2, cache.order.Len())
}

func TestTokenBucket_CapacityCap(t *testing.T) {
	bucket := newTokenBucket(2, time.Minute)

	// After a long idle period the bucket holds at most its capacity.
	bucket.tokens = 0
	bucket.lastRefill = time.Now().Add(-time.Hour)

	for i := 0; i < 2; i++ {
		assert.True(t, bucket.allow(), "token %d", i+1)
	}
	assert.False(t, bucket.allow())
}
