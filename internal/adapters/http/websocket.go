package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/geobubbles/internal/adapters/nats"
	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/core/visibility"
	"github.com/samirrijal/geobubbles/internal/pkg/metrics"
)

const wsPingInterval = 30 * time.Second

// wsAction is sent by the client to steer its live feed.
type wsAction struct {
	Action string  `json:"action"` // "move" | "refresh_friends"
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

// wsKindHidden tells the client to drop a bubble it may have rendered.
const wsKindHidden = "hidden"

// wsPush is one live event delivered to a viewer. Hidden pushes carry only
// the message ID.
type wsPush struct {
	Kind       string          `json:"kind"`
	MessageID  string          `json:"message_id"`
	Message    *domain.Message `json:"message,omitempty"`
	DistanceKm float64         `json:"distance_km,omitempty"`
	Rule       string          `json:"rule,omitempty"`
}

// liveSession holds one viewer's position and friend set and decides which
// broker events reach them.
type liveSession struct {
	viewerID string
	policy   visibility.Policy
	friends  func(ctx context.Context) (domain.FriendSet, error)
	send     func(v interface{}) error

	mu        sync.Mutex
	at        *domain.Coordinate
	friendSet domain.FriendSet
}

func (s *liveSession) move(c domain.Coordinate) {
	s.mu.Lock()
	s.at = &c
	s.mu.Unlock()
}

func (s *liveSession) refreshFriends(ctx context.Context) error {
	if s.viewerID == "" || s.friends == nil {
		return nil
	}
	set, err := s.friends(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.friendSet = set
	s.mu.Unlock()
	return nil
}

// deliver pushes ev when the message is visible from the current position.
// An in-range update or deletion the viewer may no longer see is pushed as a
// hidden notice so the client can drop the bubble.
func (s *liveSession) deliver(ev *domain.MessageEvent) (bool, error) {
	s.mu.Lock()
	at, friends := s.at, s.friendSet
	s.mu.Unlock()
	if at == nil {
		return false, nil
	}

	d, err := visibility.Evaluate(s.policy, s.viewerID, *at, friends, &ev.Message)
	if err != nil {
		return false, err
	}
	if !d.Visible {
		if ev.Kind == domain.EventCreated || !d.InRange {
			return false, nil
		}
		return true, s.send(wsPush{Kind: wsKindHidden, MessageID: ev.Message.ID})
	}
	msg := ev.Message
	return true, s.send(wsPush{
		Kind:       ev.Kind,
		MessageID:  msg.ID,
		Message:    &msg,
		DistanceKm: d.DistanceKm,
		Rule:       string(d.Rule),
	})
}

// handle applies one client action and returns the status reply.
func (s *liveSession) handle(ctx context.Context, raw []byte) map[string]string {
	var a wsAction
	if err := json.Unmarshal(raw, &a); err != nil {
		return map[string]string{"error": "invalid JSON"}
	}
	switch a.Action {
	case "move":
		c, err := domain.NewCoordinate(a.Lat, a.Lon)
		if err != nil {
			return map[string]string{"error": err.Error()}
		}
		s.move(c)
		return map[string]string{"status": "moved"}
	case "refresh_friends":
		if err := s.refreshFriends(ctx); err != nil {
			return map[string]string{"error": "friend lookup failed"}
		}
		return map[string]string{"status": "friends refreshed"}
	default:
		return map[string]string{"error": "unknown action: " + a.Action}
	}
}

// initialLocation uses lat/lon query params, then the last reported
// position, then the configured fallback.
func initialLocation(ctx context.Context, c *websocket.Conn, deps *Dependencies, viewer string) *domain.Coordinate {
	if lat, lon := c.Query("lat"), c.Query("lon"); lat != "" && lon != "" {
		la, errLat := strconv.ParseFloat(lat, 64)
		lo, errLon := strconv.ParseFloat(lon, 64)
		if errLat == nil && errLon == nil {
			if at, err := domain.NewCoordinate(la, lo); err == nil {
				return &at
			}
		}
	}
	if viewer != "" && deps.Users != nil {
		if at, err := deps.Users.ViewerLocation(ctx, viewer); err == nil {
			return &at
		}
	}
	return deps.Fallback
}

// WebSocketHandler streams message events to the viewer, filtered per
// connection by the same visibility rules as the nearby feed.
// Clients send JSON: {"action":"move","lat":43.26,"lon":-2.93} or
// {"action":"refresh_friends"}.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		ctx := context.Background()
		viewer, _ := c.Locals("viewer").(string)
		remoteAddr := c.RemoteAddr().String()
		log := slog.With("remote", remoteAddr, "viewer_id", viewer)

		if deps.NATS == nil {
			log.Warn("ws rejected, broker unavailable")
			return
		}

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		log.Info("ws client connected")

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		radius := 0.0
		if r, err := strconv.ParseFloat(c.Query("radius_km"), 64); err == nil {
			radius = r
		}
		radius = deps.Feed.Radius(radius)

		sess := &liveSession{
			viewerID: viewer,
			policy:   deps.Feed.Policy(radius),
			send:     writeJSON,
			at:       initialLocation(ctx, c, deps, viewer),
		}
		if deps.Friends != nil {
			sess.friends = func(ctx context.Context) (domain.FriendSet, error) {
				return deps.Friends.FriendSet(ctx, viewer)
			}
		}
		if err := sess.refreshFriends(ctx); err != nil {
			log.Warn("ws friend lookup failed", "error", err)
		}

		sub, err := deps.NATS.Subscribe(natsadapter.SubjectMessages, func(msg *nats.Msg) {
			var ev domain.MessageEvent
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				return
			}
			pushed, err := sess.deliver(&ev)
			if err != nil {
				log.Debug("ws event skipped", "message_id", ev.Message.ID, "error", err)
				return
			}
			if pushed {
				metrics.WebSocketPushed.Inc()
			}
		})
		if err != nil {
			log.Error("ws subscribe failed", "error", err)
			return
		}
		defer func() { _ = sub.Unsubscribe() }()

		_ = writeJSON(map[string]interface{}{"status": "connected", "radius_km": radius, "located": sess.at != nil})

		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}
			_ = writeJSON(sess.handle(ctx, raw))
		}
		log.Info("ws client disconnected")
	}
}
