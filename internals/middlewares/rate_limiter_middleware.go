package middlewares

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func ipLimiter(max int, window time.Duration, message string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": message,
			})
		},
	})
}

// Global limiter for ordinary endpoints.
func GlobalRateLimiter() fiber.Handler {
	return ipLimiter(100, time.Minute, "❌ Terlalu banyak permintaan. Silakan coba lagi nanti.")
}

// CheckoutRateLimiter is stricter: each call opens a gateway transaction.
func CheckoutRateLimiter() fiber.Handler {
	return ipLimiter(5, time.Minute, "❌ Terlalu banyak percobaan pembayaran. Coba beberapa saat lagi.")
}

// WebhookRateLimiter keeps gateway retries flowing while capping floods.
func WebhookRateLimiter() fiber.Handler {
	return ipLimiter(300, time.Minute, "rate limited")
}
