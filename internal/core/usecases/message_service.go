package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/core/ports"
	"github.com/samirrijal/geobubbles/internal/core/visibility"
	"github.com/samirrijal/geobubbles/internal/pkg/logging"
	"github.com/samirrijal/geobubbles/internal/pkg/metrics"
	"github.com/samirrijal/geobubbles/internal/pkg/telemetry"
)

const (
	maxMessageRunes = 500
	messageCacheTTL = 60 // seconds
)

// MessageService handles posting and managing message bubbles.
type MessageService struct {
	messages  ports.MessageRepository
	replies   ports.ReplyRepository
	users     *UserService
	friends   *FriendService
	cache     ports.CacheService
	publisher ports.EventPublisher
}

// NewMessageService creates a new MessageService. cache and publisher may be nil.
func NewMessageService(
	messages ports.MessageRepository,
	replies ports.ReplyRepository,
	users *UserService,
	friends *FriendService,
	cache ports.CacheService,
	publisher ports.EventPublisher,
) *MessageService {
	return &MessageService{
		messages:  messages,
		replies:   replies,
		users:     users,
		friends:   friends,
		cache:     cache,
		publisher: publisher,
	}
}

// Post creates a message anchored at the given coordinate.
func (s *MessageService) Post(ctx context.Context, authorID, text string, vis domain.Visibility, at domain.Coordinate) (*domain.Message, error) {
	ctx, span := telemetry.Tracer("usecases").Start(ctx, telemetry.SpanMessagePost)
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text must not be empty", domain.ErrValidation)
	}
	if utf8.RuneCountInString(text) > maxMessageRunes {
		return nil, fmt.Errorf("%w: text too long (max %d characters)", domain.ErrValidation, maxMessageRunes)
	}
	if _, err := domain.ParseVisibility(string(vis)); err != nil {
		return nil, err
	}
	if _, err := domain.NewCoordinate(at.Lat, at.Lon); err != nil {
		return nil, err
	}
	if _, err := s.users.requireActive(ctx, authorID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	m := &domain.Message{
		AuthorID:   authorID,
		Text:       text,
		Visibility: vis,
		Location:   domain.FromCoordinate(at),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	metrics.MessagesPosted.WithLabelValues(string(vis)).Inc()

	s.publish(ctx, domain.EventCreated, m)
	return m, nil
}

// Get returns a message by ID.
func (s *MessageService) Get(ctx context.Context, id string) (*domain.Message, error) {
	var m domain.Message
	if readCache(ctx, s.cache, "message", messageKey(id), &m) {
		return &m, nil
	}

	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	writeCache(ctx, s.cache, messageKey(id), msg, messageCacheTTL)
	return msg, nil
}

// GetVisible returns a message only when the viewer's rules admit it.
// Distance is not considered: a direct link works anywhere.
func (s *MessageService) GetVisible(ctx context.Context, viewerID, id string) (*domain.Message, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.canSee(ctx, viewerID, m)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Hidden messages are indistinguishable from missing ones.
		return nil, domain.ErrNotFound
	}
	return m, nil
}

// ListByAuthor returns an author's messages that the viewer is allowed to see.
func (s *MessageService) ListByAuthor(ctx context.Context, viewerID, authorID string, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	msgs, err := s.messages.ListByAuthor(ctx, authorID, limit)
	if err != nil {
		return nil, err
	}
	if viewerID == authorID {
		return msgs, nil
	}

	friends, err := s.friends.FriendSet(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	policy := visibility.DefaultPolicy(0)
	out := make([]domain.Message, 0, len(msgs))
	for i := range msgs {
		if visibility.CanSee(policy, viewerID, friends, &msgs[i]) {
			out = append(out, msgs[i])
		}
	}
	return out, nil
}

// SetVisibility changes the visibility tag of a message. Only the author may do this.
func (s *MessageService) SetVisibility(ctx context.Context, actorID, id string, vis domain.Visibility) (*domain.Message, error) {
	if _, err := domain.ParseVisibility(string(vis)); err != nil {
		return nil, err
	}
	m, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.AuthorID != actorID {
		return nil, fmt.Errorf("%w: only the author can change visibility", domain.ErrForbidden)
	}
	if m.Visibility == vis {
		return m, nil
	}

	if err := s.messages.UpdateVisibility(ctx, id, vis); err != nil {
		return nil, fmt.Errorf("update visibility: %w", err)
	}
	dropCache(ctx, s.cache, messageKey(id))

	m.Visibility = vis
	m.UpdatedAt = time.Now().UTC()
	s.publish(ctx, domain.EventUpdated, m)
	return m, nil
}

// Delete removes a message and its replies. Only the author may do this.
func (s *MessageService) Delete(ctx context.Context, actorID, id string) error {
	m, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if m.AuthorID != actorID {
		return fmt.Errorf("%w: only the author can delete a message", domain.ErrForbidden)
	}
	if err := s.replies.DeleteByMessage(ctx, id); err != nil {
		return fmt.Errorf("delete replies: %w", err)
	}
	if err := s.messages.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	dropCache(ctx, s.cache, messageKey(id))

	s.publish(ctx, domain.EventDeleted, m)
	return nil
}

// Invalidate drops a cached message.
func (s *MessageService) Invalidate(ctx context.Context, id string) {
	dropCache(ctx, s.cache, messageKey(id))
}

func (s *MessageService) canSee(ctx context.Context, viewerID string, m *domain.Message) (bool, error) {
	if viewerID != "" && viewerID == m.AuthorID {
		return true, nil
	}
	var friends domain.FriendSet
	if viewerID != "" && m.Visibility == domain.VisibilityFriends {
		var err error
		if friends, err = s.friends.FriendSet(ctx, viewerID); err != nil {
			return false, err
		}
	}
	return visibility.CanSee(visibility.DefaultPolicy(0), viewerID, friends, m), nil
}

func (s *MessageService) publish(ctx context.Context, kind string, m *domain.Message) {
	if s.publisher == nil {
		return
	}
	ev := &domain.MessageEvent{Kind: kind, Message: *m, At: time.Now().UTC()}
	if err := s.publisher.PublishMessageEvent(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("publish message event failed",
			"kind", kind, "message_id", m.ID, "error", err)
	}
}
