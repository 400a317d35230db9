package middleware

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP)
	GlobalAPIMax        int
	GlobalAPIExpiration time.Duration

	// Audit fetch limits (per session) - each miss costs an upstream job run
	AuditFetchMax        int
	AuditFetchExpiration time.Duration

	// Schedule write limits (per IP)
	ScheduleWriteMax        int
	ScheduleWriteExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		// Global: 200/min = ~3.3 req/sec - generous for normal use
		GlobalAPIMax:        200,
		GlobalAPIExpiration: 1 * time.Minute,

		// Audit fetches: 30/min per session; cache hits are cheap but a
		// refresh storm would hammer the upstream portal
		AuditFetchMax:        30,
		AuditFetchExpiration: 1 * time.Minute,

		// Schedule imports: 20/min (bulk writes)
		ScheduleWriteMax:        20,
		ScheduleWriteExpiration: 1 * time.Minute,
	}
}

// LoadRateLimitConfig loads config from environment variables with defaults
func LoadRateLimitConfig() *RateLimitConfig {
	config := DefaultRateLimitConfig()

	if v := os.Getenv("RATE_LIMIT_GLOBAL_API"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.GlobalAPIMax = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_AUDIT_FETCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.AuditFetchMax = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_SCHEDULE_WRITE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.ScheduleWriteMax = n
		}
	}

	// Development mode: more lenient limits
	if os.Getenv("ENVIRONMENT") == "development" {
		config.GlobalAPIMax = 1000
		config.AuditFetchMax = 300
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}

	return config
}

// GlobalAPIRateLimiter creates a rate limiter for all API requests
func GlobalAPIRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.GlobalAPIMax,
		Expiration: config.GlobalAPIExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "global:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Global limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests. Please slow down.",
				"retry_after": int(config.GlobalAPIExpiration.Seconds()),
			})
		},
		SkipFailedRequests:     false,
		SkipSuccessfulRequests: false,
	})
}

// AuditFetchRateLimiter limits audit endpoints per session cookie, falling
// back to IP when no cookie is present.
func AuditFetchRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.AuditFetchMax,
		Expiration: config.AuditFetchExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			if cookie := c.Get("X-Audit-Cookie"); cookie != "" {
				return "audit:" + cookie
			}
			if cookie := c.Get(fiber.HeaderCookie); cookie != "" {
				return "audit:" + cookie
			}
			return "audit-ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Audit fetch limit reached for IP: %s on %s", c.IP(), c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many audit requests. Please wait before trying again.",
				"retry_after": int(config.AuditFetchExpiration.Seconds()),
			})
		},
	})
}

// ScheduleWriteRateLimiter limits bulk schedule imports per IP.
func ScheduleWriteRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.ScheduleWriteMax,
		Expiration: config.ScheduleWriteExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "schedule:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Schedule write limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many schedule imports. Please wait before trying again.",
				"retry_after": int(config.ScheduleWriteExpiration.Seconds()),
			})
		},
	})
}
