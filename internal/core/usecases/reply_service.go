package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/core/ports"
	"github.com/samirrijal/geobubbles/internal/pkg/metrics"
)

const maxReplyRunes = 300

// ReplyService handles comments on messages. Replies are gated by the
// visibility rules of the parent message but are not geofenced.
type ReplyService struct {
	replies  ports.ReplyRepository
	messages *MessageService
	users    *UserService
}

// NewReplyService creates a new ReplyService.
func NewReplyService(replies ports.ReplyRepository, messages *MessageService, users *UserService) *ReplyService {
	return &ReplyService{replies: replies, messages: messages, users: users}
}

// Reply adds a reply to a message the author can see.
func (s *ReplyService) Reply(ctx context.Context, authorID, messageID, text string) (*domain.Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text must not be empty", domain.ErrValidation)
	}
	if utf8.RuneCountInString(text) > maxReplyRunes {
		return nil, fmt.Errorf("%w: text too long (max %d characters)", domain.ErrValidation, maxReplyRunes)
	}
	if _, err := s.users.requireActive(ctx, authorID); err != nil {
		return nil, err
	}
	if _, err := s.messages.GetVisible(ctx, authorID, messageID); err != nil {
		return nil, err
	}

	r := &domain.Reply{
		MessageID: messageID,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.replies.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create reply: %w", err)
	}
	// reply_count changed
	s.messages.Invalidate(ctx, messageID)
	metrics.RepliesPosted.Inc()
	return r, nil
}

// List returns the replies of a message the viewer can see, oldest first.
func (s *ReplyService) List(ctx context.Context, viewerID, messageID string, limit int) ([]domain.Reply, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	if _, err := s.messages.GetVisible(ctx, viewerID, messageID); err != nil {
		return nil, err
	}
	return s.replies.ListByMessage(ctx, messageID, limit)
}

// Delete removes a reply. The reply author and the message author may do this.
func (s *ReplyService) Delete(ctx context.Context, actorID, replyID string) error {
	r, err := s.replies.GetByID(ctx, replyID)
	if err != nil {
		return err
	}
	if r.AuthorID != actorID {
		m, err := s.messages.Get(ctx, r.MessageID)
		if err != nil {
			return err
		}
		if m.AuthorID != actorID {
			return fmt.Errorf("%w: only the reply or message author can delete a reply", domain.ErrForbidden)
		}
	}
	if err := s.replies.Delete(ctx, replyID); err != nil {
		return fmt.Errorf("delete reply: %w", err)
	}
	s.messages.Invalidate(ctx, r.MessageID)
	return nil
}
