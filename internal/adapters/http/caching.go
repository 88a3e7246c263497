package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics":
			ttl = "no-cache"

		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600"

		case path == "/v1/messages/nearby":
			// depends on viewer, position and time
			ttl = "private, no-store"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "private, max-age=0, must-revalidate"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		if strings.HasPrefix(path, "/v1/") {
			c.Vary(HeaderUserID)
		}

		return err
	}
}
