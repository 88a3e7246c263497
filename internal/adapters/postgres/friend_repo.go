package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/geobubbles/internal/core/domain"
)

// FriendRepo implements ports.FriendRepository with pgx. Each friendship is
// stored as two directed rows.
type FriendRepo struct {
	db *DB
}

// NewFriendRepo creates a new FriendRepo.
func NewFriendRepo(db *DB) *FriendRepo {
	return &FriendRepo{db: db}
}

// Add inserts both directions in one transaction.
func (r *FriendRepo) Add(ctx context.Context, userID, friendID string) error {
	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range [][2]string{{userID, friendID}, {friendID, userID}} {
			batch.Queue(`INSERT INTO friendships (user_id, friend_id) VALUES ($1, $2)`, p[0], p[1])
		}
		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		for i := 0; i < 2; i++ {
			if _, err := br.Exec(); err != nil {
				return mapErr(err)
			}
		}
		return nil
	})
}

// Remove deletes both directions.
func (r *FriendRepo) Remove(ctx context.Context, userID, friendID string) error {
	return requireRow(r.db.Pool.Exec(ctx, `
		DELETE FROM friendships
		WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)
	`, userID, friendID))
}

// List returns the friends of a user ordered by username.
func (r *FriendRepo) List(ctx context.Context, userID string) ([]domain.Friend, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT u.id, u.username, u.display_name, f.created_at
		FROM friendships f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = $1
		ORDER BY u.username
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	var out []domain.Friend
	for rows.Next() {
		var f domain.Friend
		if err := rows.Scan(&f.UserID, &f.Username, &f.DisplayName, &f.Since); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// RemoveAll deletes every friendship of a user and returns the former friends.
func (r *FriendRepo) RemoveAll(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		DELETE FROM friendships WHERE user_id = $1 OR friend_id = $1
		RETURNING CASE WHEN user_id = $1 THEN friend_id ELSE user_id END
	`, userID)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return uniqueStrings(ids), nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
