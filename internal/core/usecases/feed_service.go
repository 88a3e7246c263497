package usecases

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/core/ports"
	"github.com/samirrijal/geobubbles/internal/core/visibility"
	"github.com/samirrijal/geobubbles/internal/pkg/logging"
	"github.com/samirrijal/geobubbles/internal/pkg/metrics"
	"github.com/samirrijal/geobubbles/internal/pkg/telemetry"
)

// Where the viewer position of a feed came from.
const (
	LocationExplicit = "explicit"
	LocationLastSeen = "last_seen"
	LocationFallback = "fallback"
)

// FeedConfig holds the radius limits of nearby feeds. CandidateLimit is the
// page size of each candidate query; a feed reads pages until the box is
// exhausted.
type FeedConfig struct {
	DefaultRadiusKm float64
	MaxRadiusKm     float64
	CandidateLimit  int
}

// FeedQuery describes one nearby-feed request.
type FeedQuery struct {
	ViewerID string
	// At is the explicit viewer position. When nil the last reported
	// location is used, then Fallback.
	At       *domain.Coordinate
	Fallback *domain.Coordinate
	RadiusKm float64
}

// Feed is the visible neighbourhood of a viewer.
type Feed struct {
	Viewer         domain.Coordinate `json:"viewer"`
	LocationSource string            `json:"location_source"`
	RadiusKm       float64           `json:"radius_km"`
	Messages       []domain.Message  `json:"messages"`
	Rejected       int               `json:"rejected"`
}

// FeedService computes what a viewer sees around them.
type FeedService struct {
	messages ports.MessageRepository
	users    *UserService
	friends  *FriendService
	cfg      FeedConfig
}

// NewFeedService creates a new FeedService.
func NewFeedService(messages ports.MessageRepository, users *UserService, friends *FriendService, cfg FeedConfig) *FeedService {
	if cfg.DefaultRadiusKm <= 0 {
		cfg.DefaultRadiusKm = 0.2
	}
	if cfg.MaxRadiusKm < cfg.DefaultRadiusKm {
		cfg.MaxRadiusKm = cfg.DefaultRadiusKm
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 1000
	}
	return &FeedService{messages: messages, users: users, friends: friends, cfg: cfg}
}

// Radius clamps a requested radius to the configured range.
func (s *FeedService) Radius(requested float64) float64 {
	if requested <= 0 || math.IsNaN(requested) {
		return s.cfg.DefaultRadiusKm
	}
	return math.Min(requested, s.cfg.MaxRadiusKm)
}

// Policy returns the visibility policy for a radius.
func (s *FeedService) Policy(radiusKm float64) visibility.Policy {
	return visibility.DefaultPolicy(s.Radius(radiusKm))
}

// Nearby returns the messages visible to the viewer within the radius.
func (s *FeedService) Nearby(ctx context.Context, q FeedQuery) (*Feed, error) {
	ctx, span := telemetry.Tracer("usecases").Start(ctx, telemetry.SpanFeedNearby)
	defer span.End()

	viewer, source, err := s.resolveLocation(ctx, q)
	if err != nil {
		return nil, err
	}
	policy := s.Policy(q.RadiusKm)
	span.SetAttributes(
		attribute.String(telemetry.AttrViewerID, q.ViewerID),
		attribute.Float64(telemetry.AttrRadiusKm, policy.MaxDistanceKm),
		attribute.String(telemetry.AttrLocationSource, source),
	)
	metrics.FeedRequests.WithLabelValues(source).Inc()

	var friends domain.FriendSet
	if q.ViewerID != "" {
		if friends, err = s.friends.FriendSet(ctx, q.ViewerID); err != nil {
			return nil, fmt.Errorf("friend set: %w", err)
		}
	}

	candidates, err := s.candidates(ctx, domain.CandidateQuery{
		Bounds:    domain.BoundsAround(viewer, policy.MaxDistanceKm),
		ViewerID:  q.ViewerID,
		FriendIDs: friends.IDs(),
		Limit:     s.cfg.CandidateLimit,
	})
	if err != nil {
		return nil, err
	}
	metrics.FeedCandidates.Observe(float64(len(candidates)))

	res := visibility.Filter(policy, visibility.Request{
		ViewerID:   q.ViewerID,
		Viewer:     viewer,
		Candidates: candidates,
		Friends:    friends,
	})

	log := logging.FromContext(ctx)
	for _, rj := range res.Rejected {
		metrics.GeometryRejected.WithLabelValues(rejectReason(rj.Err)).Inc()
		log.Warn("skipping message with malformed location", "message_id", rj.MessageID, "error", rj.Err)
	}
	metrics.FeedVisible.Observe(float64(len(res.Visible)))
	span.SetAttributes(
		attribute.Int(telemetry.AttrCandidates, len(candidates)),
		attribute.Int(telemetry.AttrVisible, len(res.Visible)),
		attribute.Int(telemetry.AttrRejected, len(res.Rejected)),
	)

	return &Feed{
		Viewer:         viewer,
		LocationSource: source,
		RadiusKm:       policy.MaxDistanceKm,
		Messages:       res.Visible,
		Rejected:       len(res.Rejected),
	}, nil
}

// candidates reads every page of the candidate query.
func (s *FeedService) candidates(ctx context.Context, q domain.CandidateQuery) ([]domain.Message, error) {
	var out []domain.Message
	pages := 0
	for {
		page, err := s.messages.ListInBounds(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("list candidates: %w", err)
		}
		pages++
		if len(page) == 0 {
			break
		}
		next := domain.CursorAfter(&page[len(page)-1])
		if q.After != nil && q.After.ID == next.ID && q.After.CreatedAt.Equal(next.CreatedAt) {
			logging.FromContext(ctx).Error("candidate scan did not advance", "cursor_id", next.ID)
			break
		}
		out = append(out, page...)
		if len(page) < q.Limit {
			break
		}
		q.After = next
	}
	metrics.FeedCandidatePages.Observe(float64(pages))
	return out, nil
}

func (s *FeedService) resolveLocation(ctx context.Context, q FeedQuery) (domain.Coordinate, string, error) {
	if q.At != nil {
		c, err := domain.NewCoordinate(q.At.Lat, q.At.Lon)
		return c, LocationExplicit, err
	}
	if q.ViewerID != "" {
		c, err := s.users.ViewerLocation(ctx, q.ViewerID)
		switch {
		case err == nil:
			return c, LocationLastSeen, nil
		case !errors.Is(err, domain.ErrLocationUnavailable):
			return domain.Coordinate{}, "", err
		}
	}
	if q.Fallback != nil {
		return *q.Fallback, LocationFallback, nil
	}
	return domain.Coordinate{}, "", domain.ErrLocationUnavailable
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidGeometryKind):
		return "kind"
	case errors.Is(err, domain.ErrInvalidCoordinateArity):
		return "arity"
	case errors.Is(err, domain.ErrInvalidCoordinateRange):
		return "range"
	}
	return "other"
}
