package ports

import (
	"context"

	"github.com/samirrijal/geobubbles/internal/core/domain"
)

// UserRepository persists user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateLocation(ctx context.Context, id string, loc domain.GeoPoint) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

// MessageRepository persists message bubbles.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	ListByAuthor(ctx context.Context, authorID string, limit int) ([]domain.Message, error)
	// ListInBounds returns one page of feed candidates, newest first. It is an
	// index pre-selection; the visibility filter makes the decision.
	ListInBounds(ctx context.Context, q domain.CandidateQuery) ([]domain.Message, error)
	UpdateVisibility(ctx context.Context, id string, v domain.Visibility) error
	Delete(ctx context.Context, id string) error
	DeleteByAuthor(ctx context.Context, authorID string) ([]string, error)
}

// ReplyRepository persists replies to messages.
type ReplyRepository interface {
	Create(ctx context.Context, reply *domain.Reply) error
	GetByID(ctx context.Context, id string) (*domain.Reply, error)
	ListByMessage(ctx context.Context, messageID string, limit int) ([]domain.Reply, error)
	Delete(ctx context.Context, id string) error
	DeleteByMessage(ctx context.Context, messageID string) error
	DeleteByAuthor(ctx context.Context, authorID string) error
}

// FriendRepository persists mutual friendships.
type FriendRepository interface {
	Add(ctx context.Context, userID, friendID string) error
	Remove(ctx context.Context, userID, friendID string) error
	List(ctx context.Context, userID string) ([]domain.Friend, error)
	RemoveAll(ctx context.Context, userID string) ([]string, error)
}
