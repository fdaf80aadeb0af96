// middleware/ratelimit.go
package middleware

import (
	"context"
	"log"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// CounterStore is the shared counter backend for rate limiting. The
// counters live behind this interface rather than in a process-local
// map so horizontally scaled instances share one budget.
type CounterStore interface {
	// Incr bumps the window counter for key, creating it with the given
	// TTL when absent, and reports the new count plus time to reset.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// RedisCounterStore is the production backend.
type RedisCounterStore struct {
	Client *redis.Client
}

func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	pipe := s.Client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	return incr.Val(), ttlCmd.Val(), nil
}

// MemoryCounterStore keeps the counters in process. Single-instance
// deployments and tests only: counts reset on restart and are not
// shared between instances.
type MemoryCounterStore struct {
	mu      sync.Mutex
	buckets map[string]*memBucket
}

type memBucket struct {
	count   int64
	resetAt time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{buckets: make(map[string]*memBucket)}
}

func (s *MemoryCounterStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	b, ok := s.buckets[key]
	if !ok || now.After(b.resetAt) {
		b = &memBucket{count: 0, resetAt: now.Add(window)}
		s.buckets[key] = b
	}
	b.count++
	return b.count, b.resetAt.Sub(now), nil
}

// RateLimit enforces a fixed window of max requests per client key
// (user id when present, client IP otherwise). The limiter fails open:
// a broken counter store must not take the game down.
func RateLimit(store CounterStore, max int64, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := "rl:" + clientKey(c)

		count, ttl, err := store.Incr(c.Context(), key, window)
		if err != nil {
			log.Printf("⚠️  [RATE_LIMIT] counter store error: %v", err)
			return c.Next()
		}

		remaining := max - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.FormatInt(max, 10))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Set("X-RateLimit-Reset", time.Now().Add(ttl).UTC().Format(time.RFC3339))

		if count > max {
			retryAfter := int(math.Ceil(ttl.Seconds()))
			c.Set("Retry-After", strconv.Itoa(retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too Many Requests",
				"retry_after": retryAfter,
			})
		}
		return c.Next()
	}
}

func clientKey(c *fiber.Ctx) string {
	if userID := c.Get("X-User-ID"); userID != "" {
		return "u:" + userID
	}
	return "ip:" + c.IP()
}
