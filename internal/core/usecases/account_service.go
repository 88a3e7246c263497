package usecases

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/core/ports"
	"github.com/samirrijal/geobubbles/internal/pkg/logging"
	"github.com/samirrijal/geobubbles/internal/pkg/metrics"
	"github.com/samirrijal/geobubbles/internal/pkg/telemetry"
)

// PurgeReport summarises what a content purge removed.
type PurgeReport struct {
	UserID          string   `json:"user_id"`
	MessagesDeleted int      `json:"messages_deleted"`
	FriendsRemoved  int      `json:"friends_removed"`
	MessageIDs      []string `json:"message_ids,omitempty"`
}

// AccountService implements the steps of removing an account. Each step is
// idempotent so a workflow engine may retry it.
type AccountService struct {
	users     ports.UserRepository
	messages  ports.MessageRepository
	replies   ports.ReplyRepository
	friends   ports.FriendRepository
	cache     ports.CacheService
	publisher ports.EventPublisher
}

// NewAccountService creates a new AccountService. cache and publisher may be nil.
func NewAccountService(
	users ports.UserRepository,
	messages ports.MessageRepository,
	replies ports.ReplyRepository,
	friends ports.FriendRepository,
	cache ports.CacheService,
	publisher ports.EventPublisher,
) *AccountService {
	return &AccountService{
		users:     users,
		messages:  messages,
		replies:   replies,
		friends:   friends,
		cache:     cache,
		publisher: publisher,
	}
}

// Deactivate hides the user from new interactions.
func (s *AccountService) Deactivate(ctx context.Context, userID string) error {
	if err := s.users.SetActive(ctx, userID, false); err != nil {
		return fmt.Errorf("deactivate: %w", err)
	}
	return nil
}

// Reactivate undoes Deactivate.
func (s *AccountService) Reactivate(ctx context.Context, userID string) error {
	if err := s.users.SetActive(ctx, userID, true); err != nil {
		return fmt.Errorf("reactivate: %w", err)
	}
	return nil
}

// PurgeContent deletes the user's replies, messages and friendships and
// drops the affected cache keys.
func (s *AccountService) PurgeContent(ctx context.Context, userID string) (*PurgeReport, error) {
	if err := s.replies.DeleteByAuthor(ctx, userID); err != nil {
		return nil, fmt.Errorf("delete replies: %w", err)
	}
	ids, err := s.messages.DeleteByAuthor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("delete messages: %w", err)
	}
	for _, id := range ids {
		if err := s.replies.DeleteByMessage(ctx, id); err != nil {
			return nil, fmt.Errorf("delete replies of %s: %w", id, err)
		}
	}
	former, err := s.friends.RemoveAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("remove friendships: %w", err)
	}

	keys := make([]string, 0, len(ids)+len(former)+1)
	keys = append(keys, friendsKey(userID))
	for _, id := range former {
		keys = append(keys, friendsKey(id))
	}
	for _, id := range ids {
		keys = append(keys, messageKey(id))
	}
	dropCache(ctx, s.cache, keys...)

	if s.publisher != nil {
		for _, id := range ids {
			ev := &domain.MessageEvent{Kind: domain.EventDeleted, Message: domain.Message{ID: id, AuthorID: userID}}
			if err := s.publisher.PublishMessageEvent(ctx, ev); err != nil {
				logging.FromContext(ctx).Warn("publish delete event failed", "message_id", id, "error", err)
			}
		}
	}

	return &PurgeReport{
		UserID:          userID,
		MessagesDeleted: len(ids),
		FriendsRemoved:  len(former),
		MessageIDs:      ids,
	}, nil
}

// DeleteUser removes the account record. A missing user counts as deleted.
func (s *AccountService) DeleteUser(ctx context.Context, userID string) error {
	if err := s.users.Delete(ctx, userID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// Purge runs every step in order within the current process. If the content
// purge fails the account is reactivated.
func (s *AccountService) Purge(ctx context.Context, userID string) (*PurgeReport, error) {
	ctx, span := telemetry.Tracer("usecases").Start(ctx, telemetry.SpanAccountPurge)
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrViewerID, userID))

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.Deactivate(ctx, userID); err != nil {
		metrics.AccountPurges.WithLabelValues("inline", "failed").Inc()
		return nil, err
	}

	report, err := s.PurgeContent(ctx, userID)
	if err != nil {
		if rerr := s.Reactivate(ctx, userID); rerr != nil {
			logging.FromContext(ctx).Error("reactivate after failed purge", "user_id", userID, "error", rerr)
		}
		metrics.AccountPurges.WithLabelValues("inline", "compensated").Inc()
		return nil, err
	}

	if err := s.DeleteUser(ctx, userID); err != nil {
		metrics.AccountPurges.WithLabelValues("inline", "failed").Inc()
		return nil, err
	}
	metrics.AccountPurges.WithLabelValues("inline", "completed").Inc()
	return report, nil
}
