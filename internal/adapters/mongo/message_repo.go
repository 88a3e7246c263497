package mongoadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/samirrijal/geobubbles/internal/core/domain"
)

// MessageRepo implements ports.MessageRepository on MongoDB.
type MessageRepo struct {
	coll *mongo.Collection
}

// NewMessageRepo creates a new MessageRepo.
func NewMessageRepo(s *Store) *MessageRepo {
	return &MessageRepo{coll: s.db.Collection(collMessages)}
}

func prepareMessage(m *domain.Message) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
}

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	prepareMessage(m)
	_, err := r.coll.InsertOne(ctx, m)
	return mapErr(err)
}

// CreateBatch inserts many messages in one round trip.
func (r *MessageRepo) CreateBatch(ctx context.Context, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	docs := make([]any, len(msgs))
	for i := range msgs {
		prepareMessage(&msgs[i])
		docs[i] = msgs[i]
	}
	_, err := r.coll.InsertMany(ctx, docs)
	return mapErr(err)
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var m domain.Message
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&m); err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (r *MessageRepo) find(ctx context.Context, filter bson.D, limit int) ([]domain.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var msgs []domain.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return msgs, nil
}

func (r *MessageRepo) ListByAuthor(ctx context.Context, authorID string, limit int) ([]domain.Message, error) {
	return r.find(ctx, bson.D{{Key: "user_id", Value: authorID}}, limit)
}

// ListInBounds returns one page of candidates in the box that a visibility
// rule could admit: public, or written by the viewer or a friend.
func (r *MessageRepo) ListInBounds(ctx context.Context, q domain.CandidateQuery) ([]domain.Message, error) {
	clauses := bson.A{
		boundsFilter(q.Bounds),
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "visibility", Value: domain.VisibilityPublic}},
			bson.D{{Key: "user_id", Value: bson.D{{Key: "$in", Value: q.Authors()}}}},
		}}},
	}
	if q.After != nil {
		clauses = append(clauses, bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "created_at", Value: bson.D{{Key: "$lt", Value: q.After.CreatedAt}}}},
			bson.D{
				{Key: "created_at", Value: q.After.CreatedAt},
				{Key: "_id", Value: bson.D{{Key: "$lt", Value: q.After.ID}}},
			},
		}}})
	}
	return r.find(ctx, bson.D{{Key: "$and", Value: clauses}}, q.Limit)
}

func (r *MessageRepo) UpdateVisibility(ctx context.Context, id string, v domain.Visibility) error {
	return requireMatch(r.coll.UpdateByID(ctx, id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "visibility", Value: v},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}))
}

func (r *MessageRepo) Delete(ctx context.Context, id string) error {
	return requireDeleted(r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}))
}

func (r *MessageRepo) DeleteByAuthor(ctx context.Context, authorID string) ([]string, error) {
	filter := bson.D{{Key: "user_id", Value: authorID}}
	var ids []string
	if err := r.coll.Distinct(ctx, "_id", filter).Decode(&ids); err != nil {
		return nil, fmt.Errorf("collect ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := r.coll.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}); err != nil {
		return nil, err
	}
	return ids, nil
}
