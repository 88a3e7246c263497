package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/geobubbles/internal/core/domain"
)

// MessageRepo implements ports.MessageRepository with pgx.
type MessageRepo struct {
	db *DB
}

// NewMessageRepo creates a new MessageRepo.
func NewMessageRepo(db *DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageInsert = `
	INSERT INTO messages (id, user_id, text, visibility, location, lat, lon, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

func messageArgs(m *domain.Message) ([]any, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	loc, err := json.Marshal(m.Location)
	if err != nil {
		return nil, err
	}
	// Unconvertible points are stored as written but stay out of the index.
	var lat, lon *float64
	if c, err := domain.ToCoordinate(m.Location); err == nil {
		lat, lon = &c.Lat, &c.Lon
	}
	return []any{m.ID, m.AuthorID, m.Text, string(m.Visibility), loc, lat, lon, m.CreatedAt, m.UpdatedAt}, nil
}

// Create inserts a message and assigns its ID.
func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	args, err := messageArgs(m)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, messageInsert, args...)
	return mapErr(err)
}

// CreateBatch inserts many messages using pgx.Batch.
func (r *MessageRepo) CreateBatch(ctx context.Context, msgs []domain.Message) error {
	batch := &pgx.Batch{}
	for i := range msgs {
		args, err := messageArgs(&msgs[i])
		if err != nil {
			return err
		}
		batch.Queue(messageInsert, args...)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range msgs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", mapErr(err))
		}
	}
	return nil
}

const messageSelect = `
	SELECT m.id, m.user_id, m.text, m.visibility, m.location,
	       (SELECT count(*) FROM replies r WHERE r.message_id = m.id) AS reply_count,
	       m.created_at, m.updated_at
	FROM messages m
`

func scanMessage(row interface{ Scan(dest ...any) error }) (*domain.Message, error) {
	var m domain.Message
	var vis string
	var loc []byte
	if err := row.Scan(&m.ID, &m.AuthorID, &m.Text, &vis, &loc, &m.ReplyCount, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	m.Visibility = domain.Visibility(vis)
	if err := json.Unmarshal(loc, &m.Location); err != nil {
		// keep the row; the visibility filter reports the bad geometry
		m.Location = domain.GeoPoint{}
	}
	return &m, nil
}

func (r *MessageRepo) list(ctx context.Context, query string, args ...any) ([]domain.Message, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// GetByID returns a message by ID.
func (r *MessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	return scanMessage(r.db.Pool.QueryRow(ctx, messageSelect+` WHERE m.id = $1`, id))
}

// ListByAuthor returns an author's messages, newest first.
func (r *MessageRepo) ListByAuthor(ctx context.Context, authorID string, limit int) ([]domain.Message, error) {
	return r.list(ctx, messageSelect+`
		WHERE m.user_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2
	`, authorID, limit)
}

// ListInBounds returns one page of candidates in the box that a visibility
// rule could admit: public, or written by the viewer or a friend.
func (r *MessageRepo) ListInBounds(ctx context.Context, q domain.CandidateQuery) ([]domain.Message, error) {
	var afterAt any
	var afterID string
	if q.After != nil {
		afterAt, afterID = q.After.CreatedAt, q.After.ID
	}
	return r.list(ctx, messageSelect+`
		WHERE m.lat BETWEEN $1 AND $2
		  AND m.lon BETWEEN $3 AND $4
		  AND (m.visibility = 'public' OR m.user_id = ANY($5))
		  AND ($6::timestamptz IS NULL OR (m.created_at, m.id) < ($6::timestamptz, $7::text))
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $8
	`, q.Bounds.MinLat, q.Bounds.MaxLat, q.Bounds.MinLon, q.Bounds.MaxLon, q.Authors(), afterAt, afterID, q.Limit)
}

// UpdateVisibility changes the visibility tag.
func (r *MessageRepo) UpdateVisibility(ctx context.Context, id string, v domain.Visibility) error {
	return requireRow(r.db.Pool.Exec(ctx, `
		UPDATE messages SET visibility = $2, updated_at = now() WHERE id = $1
	`, id, string(v)))
}

// Delete removes a message. Replies cascade.
func (r *MessageRepo) Delete(ctx context.Context, id string) error {
	return requireRow(r.db.Pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id))
}

// DeleteByAuthor removes every message of an author and returns their IDs.
func (r *MessageRepo) DeleteByAuthor(ctx context.Context, authorID string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `DELETE FROM messages WHERE user_id = $1 RETURNING id`, authorID)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return ids, nil
}
