package usecases

import (
	"context"
	"fmt"

	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/core/ports"
)

const friendsCacheTTL = 120 // seconds

// FriendService manages mutual friendships.
type FriendService struct {
	friends ports.FriendRepository
	users   ports.UserRepository
	cache   ports.CacheService
}

// NewFriendService creates a new FriendService. cache may be nil.
func NewFriendService(friends ports.FriendRepository, users ports.UserRepository, cache ports.CacheService) *FriendService {
	return &FriendService{friends: friends, users: users, cache: cache}
}

// Add befriends two users in both directions.
func (s *FriendService) Add(ctx context.Context, userID, friendID string) error {
	if userID == "" || friendID == "" {
		return fmt.Errorf("%w: both user ids are required", domain.ErrValidation)
	}
	if userID == friendID {
		return fmt.Errorf("%w: cannot befriend yourself", domain.ErrValidation)
	}
	for _, id := range []string{userID, friendID} {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("user %s: %w", id, err)
		}
		if !u.Active {
			return fmt.Errorf("user %s: %w", id, domain.ErrInactiveUser)
		}
	}

	if err := s.friends.Add(ctx, userID, friendID); err != nil {
		return err
	}
	dropCache(ctx, s.cache, friendsKey(userID), friendsKey(friendID))
	return nil
}

// Remove ends a friendship in both directions.
func (s *FriendService) Remove(ctx context.Context, userID, friendID string) error {
	if err := s.friends.Remove(ctx, userID, friendID); err != nil {
		return err
	}
	dropCache(ctx, s.cache, friendsKey(userID), friendsKey(friendID))
	return nil
}

// List returns the friends of a user.
func (s *FriendService) List(ctx context.Context, userID string) ([]domain.Friend, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.friends.List(ctx, userID)
}

// FriendSet returns the IDs a user has befriended, read through the cache.
func (s *FriendService) FriendSet(ctx context.Context, userID string) (domain.FriendSet, error) {
	var ids []string
	if readCache(ctx, s.cache, "friends", friendsKey(userID), &ids) {
		return domain.NewFriendSet(ids...), nil
	}

	friends, err := s.friends.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	set := domain.FriendSetFromFriends(friends)
	writeCache(ctx, s.cache, friendsKey(userID), set.IDs(), friendsCacheTTL)
	return set, nil
}

// Invalidate drops cached friend sets for the given users.
func (s *FriendService) Invalidate(ctx context.Context, userIDs ...string) {
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = friendsKey(id)
	}
	dropCache(ctx, s.cache, keys...)
}
