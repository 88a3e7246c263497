package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/geobubbles/internal/core/domain"
)

// ReplyRepo implements ports.ReplyRepository with pgx.
type ReplyRepo struct {
	db *DB
}

// NewReplyRepo creates a new ReplyRepo.
func NewReplyRepo(db *DB) *ReplyRepo {
	return &ReplyRepo{db: db}
}

// Create inserts a reply and assigns its ID.
func (r *ReplyRepo) Create(ctx context.Context, rep *domain.Reply) error {
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO replies (id, message_id, user_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rep.ID, rep.MessageID, rep.AuthorID, rep.Text, rep.CreatedAt)
	return mapErr(err)
}

// GetByID returns a reply by ID.
func (r *ReplyRepo) GetByID(ctx context.Context, id string) (*domain.Reply, error) {
	var rep domain.Reply
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, message_id, user_id, text, created_at FROM replies WHERE id = $1
	`, id).Scan(&rep.ID, &rep.MessageID, &rep.AuthorID, &rep.Text, &rep.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &rep, nil
}

// ListByMessage returns replies oldest first.
func (r *ReplyRepo) ListByMessage(ctx context.Context, messageID string, limit int) ([]domain.Reply, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, message_id, user_id, text, created_at
		FROM replies WHERE message_id = $1
		ORDER BY created_at
		LIMIT $2
	`, messageID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reply
	for rows.Next() {
		var rep domain.Reply
		if err := rows.Scan(&rep.ID, &rep.MessageID, &rep.AuthorID, &rep.Text, &rep.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// Delete removes a reply.
func (r *ReplyRepo) Delete(ctx context.Context, id string) error {
	return requireRow(r.db.Pool.Exec(ctx, `DELETE FROM replies WHERE id = $1`, id))
}

// DeleteByMessage removes every reply of a message.
func (r *ReplyRepo) DeleteByMessage(ctx context.Context, messageID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM replies WHERE message_id = $1`, messageID)
	return err
}

// DeleteByAuthor removes every reply written by a user.
func (r *ReplyRepo) DeleteByAuthor(ctx context.Context, authorID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM replies WHERE user_id = $1`, authorID)
	return err
}
