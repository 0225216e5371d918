package middleware

import (
	"container/list"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// tokenBucket is a per-client token bucket.
type tokenBucket struct {
	lastRefill time.Time
	mu         sync.Mutex
	refill     time.Duration
	tokens     int
	capacity   int
}

func newTokenBucket(capacity int, refill time.Duration) *tokenBucket {
	return &tokenBucket{
		lastRefill: time.Now(),
		refill:     refill,
		tokens:     capacity,
		capacity:   capacity,
	}
}

// allow consumes one token if available.
func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(b.lastRefill); elapsed >= b.refill {
		added := int(elapsed / b.refill)
		b.tokens = minInt(b.capacity, b.tokens+added)
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// bucketCache is an LRU of per-client buckets so unbounded distinct
// clients cannot grow memory without limit.
type bucketCache struct {
	items    map[string]*list.Element
	order    *list.List
	mu       sync.Mutex
	capacity int
}

type bucketEntry struct {
	bucket *tokenBucket
	key    string
}

func newBucketCache(capacity int) *bucketCache {
	return &bucketCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *bucketCache) get(key string, factory func() *tokenBucket) *tokenBucket {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.order.MoveToFront(elem)
		return elem.Value.(*bucketEntry).bucket
	}

	bucket := factory()
	elem := c.order.PushFront(&bucketEntry{key: key, bucket: bucket})
	c.items[key] = elem

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			entry := oldest.Value.(*bucketEntry)
			delete(c.items, entry.key)
			c.order.Remove(oldest)
		}
	}

	return bucket
}

// RateLimitConfig configures the per-user rate limiter.
type RateLimitConfig struct {
	// Capacity is the burst size per client.
	Capacity int
	// Refill is the interval at which one token is restored.
	Refill time.Duration
	// MaxClients bounds the number of tracked clients.
	MaxClients int
}

// DefaultRateLimitConfig allows short bursts of linking operations while
// keeping sustained per-user throughput modest. Linking is a rare,
// interactive flow; anything faster than this is a misbehaving client.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Capacity:   20,
		Refill:     time.Second,
		MaxClients: 10000,
	}
}

// RateLimitMiddleware limits requests per authenticated user, falling
// back to client IP for unauthenticated routes.
func RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	if config.Capacity <= 0 {
		config = DefaultRateLimitConfig()
	}
	cache := newBucketCache(config.MaxClients)

	return gin.HandlerFunc(func(c *gin.Context) {
		key := GetUserID(c)
		if key == "" {
			key = c.ClientIP()
		}

		bucket := cache.get(key, func() *tokenBucket {
			return newTokenBucket(config.Capacity, config.Refill)
		})

		if !bucket.allow() {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": map[string]interface{}{
					"type":    "RATE_LIMIT_ERROR",
					"code":    "TOO_MANY_REQUESTS",
					"message": "Request rate limit exceeded",
				},
			})
			c.Abort()
			return
		}

		c.Next()
	})
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
