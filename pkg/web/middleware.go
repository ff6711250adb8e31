package web

import (
	"crypto/subtle"
	"log/slog"

	"github.com/flowdocs/flowdocs/pkg/ratelimit"
	"github.com/gofiber/fiber/v3"
)

// RateLimit throttles requests per client IP. Limiter failures are logged and
// let the request through rather than taking the API down with the backend.
func RateLimit(limiter ratelimit.Limiter, logger *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		allowed, err := limiter.Allow(c.Context(), c.IP())
		if err != nil {
			logger.ErrorContext(c.Context(), "Rate limiter unavailable", "error", err)

			return c.Next()
		}

		if !allowed {
			return tooManyRequests(c)
		}

		return c.Next()
	}
}

// AdminOnly guards administrative endpoints behind a shared token passed as
// the admin_token query parameter. An empty configured token disables the
// endpoints entirely.
func AdminOnly(token string, logger *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		if token == "" {
			return serviceUnavailable(c,
				"Endpoint is disabled. Set ADMIN_TOKEN environment variable to enable.")
		}

		provided := c.Query("admin_token")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			logger.WarnContext(c.Context(), "Security: unauthorized admin attempt",
				"ip", c.IP(), "path", c.Path())

			return unauthorized(c, "Invalid authentication token")
		}

		return c.Next()
	}
}
