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

// ReplyRepo implements ports.ReplyRepository on MongoDB. It keeps the
// reply_count of the parent message in step.
type ReplyRepo struct {
	coll     *mongo.Collection
	messages *mongo.Collection
}

// NewReplyRepo creates a new ReplyRepo.
func NewReplyRepo(s *Store) *ReplyRepo {
	return &ReplyRepo{coll: s.db.Collection(collReplies), messages: s.db.Collection(collMessages)}
}

func (r *ReplyRepo) bump(ctx context.Context, messageID string, delta int) error {
	_, err := r.messages.UpdateByID(ctx, messageID, bson.D{{Key: "$inc", Value: bson.D{{Key: "reply_count", Value: delta}}}})
	return err
}

func (r *ReplyRepo) Create(ctx context.Context, rep *domain.Reply) error {
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, rep); err != nil {
		return mapErr(err)
	}
	return r.bump(ctx, rep.MessageID, 1)
}

func (r *ReplyRepo) GetByID(ctx context.Context, id string) (*domain.Reply, error) {
	var rep domain.Reply
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&rep); err != nil {
		return nil, mapErr(err)
	}
	return &rep, nil
}

func (r *ReplyRepo) ListByMessage(ctx context.Context, messageID string, limit int) ([]domain.Reply, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.D{{Key: "message_id", Value: messageID}}, opts)
	if err != nil {
		return nil, err
	}
	var out []domain.Reply
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode replies: %w", err)
	}
	return out, nil
}

func (r *ReplyRepo) Delete(ctx context.Context, id string) error {
	var rep domain.Reply
	if err := r.coll.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&rep); err != nil {
		return mapErr(err)
	}
	return r.bump(ctx, rep.MessageID, -1)
}

func (r *ReplyRepo) DeleteByMessage(ctx context.Context, messageID string) error {
	_, err := r.coll.DeleteMany(ctx, bson.D{{Key: "message_id", Value: messageID}})
	return err
}

func (r *ReplyRepo) DeleteByAuthor(ctx context.Context, authorID string) error {
	filter := bson.D{{Key: "user_id", Value: authorID}}
	var parents []string
	if err := r.coll.Distinct(ctx, "message_id", filter).Decode(&parents); err != nil {
		return fmt.Errorf("collect parents: %w", err)
	}
	if _, err := r.coll.DeleteMany(ctx, filter); err != nil {
		return err
	}
	for _, id := range parents {
		n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "message_id", Value: id}})
		if err != nil {
			return err
		}
		if _, err := r.messages.UpdateByID(ctx, id, bson.D{{Key: "$set", Value: bson.D{{Key: "reply_count", Value: n}}}}); err != nil {
			return err
		}
	}
	return nil
}
