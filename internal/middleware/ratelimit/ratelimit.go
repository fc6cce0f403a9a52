package ratelimit

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/ckd-chatbot/backend/internal/metrics"
)

const idleBucketTTL = 10 * time.Minute

type bucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

// RateLimiter is a per-key token bucket. Keys are the X-User-ID header when
// present and the client IP otherwise.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	maxTokens  int
	refillRate time.Duration
	logger     *zap.Logger
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

type Config struct {
	MaxRequestsPerMinute int
	WindowDuration       time.Duration
	Logger               *zap.Logger
}

func New(cfg Config) *RateLimiter {
	if cfg.MaxRequestsPerMinute <= 0 {
		cfg.MaxRequestsPerMinute = 30
	}
	if cfg.WindowDuration == 0 {
		cfg.WindowDuration = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	rl := &RateLimiter{
		buckets:    make(map[string]*bucket),
		maxTokens:  cfg.MaxRequestsPerMinute,
		refillRate: cfg.WindowDuration / time.Duration(cfg.MaxRequestsPerMinute),
		logger:     cfg.Logger,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	go rl.cleanup(5 * time.Minute)

	return rl
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := utils.CopyString(c.Get("X-User-ID"))
		if key == "" {
			key = c.IP()
		}

		if !rl.Allow(key) {
			metrics.RateLimited.Inc()
			rl.logger.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Rate limit exceeded. Please try again later.",
			})
		}

		return c.Next()
	}
}

// Allow takes one token from key's bucket.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.maxTokens, lastRefill: rl.now()}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := rl.now()
	if refill := int(now.Sub(b.lastRefill) / rl.refillRate); refill > 0 {
		b.tokens = min(rl.maxTokens, b.tokens+refill)
		b.lastRefill = b.lastRefill.Add(time.Duration(refill) * rl.refillRate)
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.lastRefill) > idleBucketTTL {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}
