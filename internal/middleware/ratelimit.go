package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP)
	GlobalAPIMax        int
	GlobalAPIExpiration time.Duration

	// Write endpoint limits (per author) for staging records
	WriteMax        int
	WriteExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		// Global: 120/min = 2 req/sec - generous for normal reading
		GlobalAPIMax:        120,
		GlobalAPIExpiration: 1 * time.Minute,

		// Writers stage short records; 30/min is well above human pace
		WriteMax:        30,
		WriteExpiration: 1 * time.Minute,
	}
}

// GlobalLimiter limits all API traffic per IP.
func GlobalLimiter(cfg *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.GlobalAPIMax,
		Expiration: cfg.GlobalAPIExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests",
			})
		},
	})
}

// WriteLimiter limits record creation per authenticated author, falling
// back to IP before auth ran.
func WriteLimiter(cfg *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.WriteMax,
		Expiration: cfg.WriteExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			if id := AuthorID(c); id != "" {
				return id
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many records staged, slow down",
			})
		},
	})
}
