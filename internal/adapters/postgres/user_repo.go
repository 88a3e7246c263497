package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/geobubbles/internal/core/domain"
)

// UserRepo implements ports.UserRepository with pgx.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a user and assigns its ID.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	loc, err := encodeOptionalPoint(u.LastLocation)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO users (id, username, display_name, last_location, location_updated_at, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Username, u.DisplayName, loc, u.LocationUpdatedAt, u.Active, u.CreatedAt)
	return mapErr(err)
}

const userColumns = `id, username, display_name, last_location, location_updated_at, active, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var u domain.User
	var loc []byte
	if err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &loc, &u.LocationUpdatedAt, &u.Active, &u.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	if len(loc) > 0 {
		var p domain.GeoPoint
		if err := json.Unmarshal(loc, &p); err != nil {
			return nil, err
		}
		u.LastLocation = &p
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByUsername returns a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanUser(r.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

// UpdateLocation stores the last reported position.
func (r *UserRepo) UpdateLocation(ctx context.Context, id string, loc domain.GeoPoint) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return requireRow(r.db.Pool.Exec(ctx, `
		UPDATE users SET last_location = $2, location_updated_at = now() WHERE id = $1
	`, id, data))
}

// SetActive toggles the account state.
func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) error {
	return requireRow(r.db.Pool.Exec(ctx, `UPDATE users SET active = $2 WHERE id = $1`, id, active))
}

// Delete removes a user. Owned rows cascade.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	return requireRow(r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id))
}

func encodeOptionalPoint(p *domain.GeoPoint) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}
