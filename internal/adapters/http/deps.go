package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/core/ports"
	"github.com/samirrijal/geobubbles/internal/core/usecases"
)

// Pinger is a backing service that can report its connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Users    *usecases.UserService
	Friends  *usecases.FriendService
	Messages *usecases.MessageService
	Replies  *usecases.ReplyService
	Feed     *usecases.FeedService
	Accounts *usecases.AccountService
	// Purges hands account removal to a workflow engine. When nil the purge
	// runs inside the request.
	Purges ports.PurgeScheduler
	// Fallback is the configured viewer position for users with no known
	// location. nil disables it.
	Fallback *domain.Coordinate
	NATS     *nats.Conn
	// DocsPath locates the OpenAPI document. Empty means DefaultDocsPath.
	DocsPath string
	DB       Pinger
	Cache    Pinger
}
