package mongoadapter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/samirrijal/geobubbles/internal/core/domain"
)

// UserRepo implements ports.UserRepository on MongoDB.
type UserRepo struct {
	coll *mongo.Collection
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(s *Store) *UserRepo {
	return &UserRepo{coll: s.db.Collection(collUsers)}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := r.coll.InsertOne(ctx, u)
	return mapErr(err)
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.D) (*domain.User, error) {
	var u domain.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "username", Value: username}})
}

func (r *UserRepo) UpdateLocation(ctx context.Context, id string, loc domain.GeoPoint) error {
	return requireMatch(r.coll.UpdateByID(ctx, id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "last_location", Value: loc},
		{Key: "location_updated_at", Value: time.Now().UTC()},
	}}}))
}

func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) error {
	return requireMatch(r.coll.UpdateByID(ctx, id, bson.D{{Key: "$set", Value: bson.D{{Key: "active", Value: active}}}}))
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	return requireDeleted(r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}))
}
