package bootstrap

import (
	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/core/ports"
	"github.com/samirrijal/geobubbles/internal/core/usecases"
	"github.com/samirrijal/geobubbles/internal/pkg/config"
)

// Services is the full use-case layer over one set of stores.
type Services struct {
	Users    *usecases.UserService
	Friends  *usecases.FriendService
	Messages *usecases.MessageService
	Replies  *usecases.ReplyService
	Feed     *usecases.FeedService
	Accounts *usecases.AccountService
}

// NewServices builds the use cases. cache and publisher may be nil.
func NewServices(st *Stores, cfg *config.Config, cache ports.CacheService, publisher ports.EventPublisher) *Services {
	users := usecases.NewUserService(st.Users, publisher)
	friends := usecases.NewFriendService(st.Friends, st.Users, cache)
	messages := usecases.NewMessageService(st.Messages, st.Replies, users, friends, cache, publisher)
	return &Services{
		Users:    users,
		Friends:  friends,
		Messages: messages,
		Replies:  usecases.NewReplyService(st.Replies, messages, users),
		Feed: usecases.NewFeedService(st.Messages, users, friends, usecases.FeedConfig{
			DefaultRadiusKm: cfg.Feed.DefaultRadiusKm,
			MaxRadiusKm:     cfg.Feed.MaxRadiusKm,
			CandidateLimit:  cfg.Feed.CandidateLimit,
		}),
		Accounts: usecases.NewAccountService(st.Users, st.Messages, st.Replies, st.Friends, cache, publisher),
	}
}

// Fallback returns the configured fallback viewer position, or nil.
func Fallback(cfg *config.Config) *domain.Coordinate {
	f := cfg.Feed.FallbackLocation
	if f == nil {
		return nil
	}
	c, err := domain.NewCoordinate(f.Lat, f.Lon)
	if err != nil {
		return nil
	}
	return &c
}
