package mongoadapter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/samirrijal/geobubbles/internal/core/domain"
)

type friendshipDoc struct {
	UserID    string    `bson:"user_id"`
	FriendID  string    `bson:"friend_id"`
	CreatedAt time.Time `bson:"created_at"`
}

// FriendRepo implements ports.FriendRepository on MongoDB with one document
// per direction.
type FriendRepo struct {
	coll  *mongo.Collection
	users *mongo.Collection
}

// NewFriendRepo creates a new FriendRepo.
func NewFriendRepo(s *Store) *FriendRepo {
	return &FriendRepo{coll: s.db.Collection(collFriendships), users: s.db.Collection(collUsers)}
}

func (r *FriendRepo) Add(ctx context.Context, userID, friendID string) error {
	now := time.Now().UTC()
	_, err := r.coll.InsertMany(ctx, []any{
		friendshipDoc{UserID: userID, FriendID: friendID, CreatedAt: now},
		friendshipDoc{UserID: friendID, FriendID: userID, CreatedAt: now},
	})
	return mapErr(err)
}

func (r *FriendRepo) Remove(ctx context.Context, userID, friendID string) error {
	return requireDeleted(r.coll.DeleteMany(ctx, bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "user_id", Value: userID}, {Key: "friend_id", Value: friendID}},
		bson.D{{Key: "user_id", Value: friendID}, {Key: "friend_id", Value: userID}},
	}}}))
}

func (r *FriendRepo) List(ctx context.Context, userID string) ([]domain.Friend, error) {
	cur, err := r.coll.Find(ctx, bson.D{{Key: "user_id", Value: userID}})
	if err != nil {
		return nil, err
	}
	var edges []friendshipDoc
	if err := cur.All(ctx, &edges); err != nil {
		return nil, fmt.Errorf("decode friendships: %w", err)
	}
	if len(edges) == 0 {
		return nil, nil
	}

	since := make(map[string]time.Time, len(edges))
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		since[e.FriendID] = e.CreatedAt
		ids = append(ids, e.FriendID)
	}
	ucur, err := r.users.Find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return nil, err
	}
	var users []domain.User
	if err := ucur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	out := make([]domain.Friend, 0, len(users))
	for _, u := range users {
		out = append(out, domain.Friend{UserID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Since: since[u.ID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *FriendRepo) RemoveAll(ctx context.Context, userID string) ([]string, error) {
	filter := bson.D{{Key: "user_id", Value: userID}}
	var ids []string
	if err := r.coll.Distinct(ctx, "friend_id", filter).Decode(&ids); err != nil {
		return nil, fmt.Errorf("collect friends: %w", err)
	}
	_, err := r.coll.DeleteMany(ctx, bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "user_id", Value: userID}},
		bson.D{{Key: "friend_id", Value: userID}},
	}}})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
