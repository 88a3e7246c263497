// Package mongoadapter implements the repositories on MongoDB.
package mongoadapter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/samirrijal/geobubbles/internal/core/domain"
)

const (
	collUsers       = "users"
	collMessages    = "messages"
	collReplies     = "replies"
	collFriendships = "friendships"
)

// Store holds the client and database shared by the repositories.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB and pings the primary.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetConnectTimeout(10 * time.Second))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// IndexSpecs lists the indexes EnsureIndexes creates, keyed by collection.
func IndexSpecs() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		collUsers: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collMessages: {
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
		},
		collReplies: {
			{Keys: bson.D{{Key: "message_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		collFriendships: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "friend_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "friend_id", Value: 1}}},
		},
	}
}

// EnsureIndexes creates every index. It is safe to run repeatedly.
func (s *Store) EnsureIndexes(ctx context.Context, report func(coll string, names []string)) error {
	for coll, models := range IndexSpecs() {
		names, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("indexes %s: %w", coll, err)
		}
		if report != nil {
			report(coll, names)
		}
	}
	return nil
}

// edgeBulgeDeg is how far a great-circle edge between two points at latitude
// lat, halfWidth degrees either side of its midpoint, strays poleward.
func edgeBulgeDeg(lat, halfWidth float64) float64 {
	phi := lat * math.Pi / 180
	mid := math.Atan(math.Tan(phi) / math.Cos(halfWidth*math.Pi/180))
	return math.Abs(mid-phi) * 180 / math.Pi
}

// padForGeodesicEdges widens the latitude range so that a GeoJSON polygon,
// whose edges are great circles, still covers the whole latitude/longitude
// box. The equatorward edge bows into the box; the bulge is measured at the
// widest latitude and taken with margin.
func padForGeodesicEdges(b domain.Bounds) domain.Bounds {
	halfWidth := (b.MaxLon - b.MinLon) / 2
	worst := math.Max(math.Abs(b.MinLat), math.Abs(b.MaxLat))
	if worst >= 89 {
		b.MinLat, b.MaxLat = math.Max(-90, b.MinLat-1), math.Min(90, b.MaxLat+1)
		return b
	}
	pad := 1.5*edgeBulgeDeg(worst, halfWidth) + 1e-9
	b.MinLat = math.Max(-90, b.MinLat-pad)
	b.MaxLat = math.Min(90, b.MaxLat+pad)
	return b
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return err
}

func requireMatch(res *mongo.UpdateResult, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func requireDeleted(res *mongo.DeleteResult, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// boundsFilter selects points inside the box. Narrow boxes use the 2dsphere
// index; boxes spanning a hemisphere or a pole fall back to coordinate ranges,
// which a single GeoJSON polygon cannot express.
func boundsFilter(b domain.Bounds) bson.D {
	if b.MaxLon-b.MinLon < 180 {
		b = padForGeodesicEdges(b)
	}
	if b.MaxLon-b.MinLon >= 180 || b.MinLat <= -90 || b.MaxLat >= 90 {
		return bson.D{
			{Key: "location.coordinates.0", Value: bson.D{{Key: "$gte", Value: b.MinLon}, {Key: "$lte", Value: b.MaxLon}}},
			{Key: "location.coordinates.1", Value: bson.D{{Key: "$gte", Value: b.MinLat}, {Key: "$lte", Value: b.MaxLat}}},
		}
	}
	ring := bson.A{
		bson.A{b.MinLon, b.MinLat},
		bson.A{b.MaxLon, b.MinLat},
		bson.A{b.MaxLon, b.MaxLat},
		bson.A{b.MinLon, b.MaxLat},
		bson.A{b.MinLon, b.MinLat},
	}
	return bson.D{{Key: "location", Value: bson.D{{Key: "$geoWithin", Value: bson.D{
		{Key: "$geometry", Value: bson.D{
			{Key: "type", Value: "Polygon"},
			{Key: "coordinates", Value: bson.A{ring}},
		}},
	}}}}}
}
