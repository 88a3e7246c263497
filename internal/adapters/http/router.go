package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/geobubbles/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(recover.New())

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, " + HeaderUserID,
	}))

	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per caller
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if v := viewerID(c); v != "" {
				return "user:" + v
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	with := func(h fiber.Handler) fiber.Handler { return timeout.NewWithContext(h, requestTimeout) }

	v1.Post("/users", with(RegisterUserHandler(deps)))
	v1.Get("/users/:id", with(GetUserHandler(deps)))
	v1.Put("/users/:id/location", with(UpdateLocationHandler(deps)))
	v1.Delete("/users/:id", with(DeleteUserHandler(deps)))
	v1.Get("/users/:id/friends", with(ListFriendsHandler(deps)))
	v1.Post("/users/:id/friends", with(AddFriendHandler(deps)))
	v1.Delete("/users/:id/friends/:friendId", with(RemoveFriendHandler(deps)))
	v1.Get("/users/:id/messages", with(UserMessagesHandler(deps)))

	v1.Post("/messages", with(PostMessageHandler(deps)))
	v1.Get("/messages/nearby", with(NearbyMessagesHandler(deps)))
	v1.Get("/messages/:id", with(GetMessageHandler(deps)))
	v1.Patch("/messages/:id/visibility", with(SetVisibilityHandler(deps)))
	v1.Delete("/messages/:id", with(DeleteMessageHandler(deps)))
	v1.Get("/messages/:id/replies", with(ListRepliesHandler(deps)))
	v1.Post("/messages/:id/replies", with(PostReplyHandler(deps)))
	v1.Delete("/replies/:id", with(DeleteReplyHandler(deps)))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app, deps.DocsPath)

	// WebSocket live feed
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		viewer := viewerID(c)
		if viewer == "" {
			viewer = c.Query("viewer")
		}
		c.Locals("viewer", viewer)
		return c.Next()
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}
