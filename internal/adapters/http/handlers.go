package http

import (
	"fmt"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/core/usecases"
)

var errMissingLatLon = fmt.Errorf("%w: lat and lon are required", domain.ErrValidation)

type registerRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

func (r locationRequest) coordinate() (domain.Coordinate, error) {
	if r.Lat == nil || r.Lon == nil {
		return domain.Coordinate{}, errMissingLatLon
	}
	return domain.NewCoordinate(*r.Lat, *r.Lon)
}

type postMessageRequest struct {
	Text       string   `json:"text"`
	Visibility string   `json:"visibility"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
}

type visibilityRequest struct {
	Visibility string `json:"visibility"`
}

type friendRequest struct {
	FriendID string `json:"friend_id"`
}

type replyRequest struct {
	Text string `json:"text"`
}

// FeedResponse is the nearby feed page.
type FeedResponse struct {
	Viewer         domain.Coordinate `json:"viewer"`
	LocationSource string            `json:"location_source"`
	RadiusKm       float64           `json:"radius_km"`
	Rejected       int               `json:"rejected"`
	Data           []domain.Message  `json:"data"`
	Pagination     Pagination        `json:"pagination"`
}

// ---- Users ----

// RegisterUserHandler creates an account.
func RegisterUserHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req registerRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		u, err := deps.Users.Register(c.UserContext(), req.Username, req.DisplayName)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(u)
	}
}

// GetUserHandler returns a user. The location is only shown to its owner.
func GetUserHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		u, err := deps.Users.Get(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}
		if viewerID(c) != u.ID {
			u.LastLocation = nil
			u.LocationUpdatedAt = nil
		}
		return c.JSON(u)
	}
}

// UpdateLocationHandler records the caller's current position.
func UpdateLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if ok, err := requireSelf(c, id); !ok {
			return err
		}
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		at, err := req.coordinate()
		if err != nil {
			return errFromDomain(c, err)
		}
		if err := deps.Users.UpdateLocation(c.UserContext(), id, at); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DeleteUserHandler removes the caller's account with all content. With a
// workflow engine configured the purge is scheduled and 202 is returned.
func DeleteUserHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if ok, err := requireSelf(c, id); !ok {
			return err
		}
		if _, err := deps.Users.Get(c.UserContext(), id); err != nil {
			return errFromDomain(c, err)
		}

		if deps.Purges != nil {
			runID, err := deps.Purges.SchedulePurge(c.UserContext(), id)
			if err != nil {
				return errFromDomain(c, err)
			}
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"user_id": id, "workflow_id": runID})
		}

		report, err := deps.Accounts.Purge(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(report)
	}
}

// ---- Friends ----

// ListFriendsHandler returns the caller's friends, paginated.
func ListFriendsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if ok, err := requireSelf(c, id); !ok {
			return err
		}
		friends, err := deps.Friends.List(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}
		offset, limit := pageParams(c, 100, 500)
		page, pg := paginate(friends, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// AddFriendHandler befriends another user.
func AddFriendHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if ok, err := requireSelf(c, id); !ok {
			return err
		}
		var req friendRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := deps.Friends.Add(c.UserContext(), id, req.FriendID); err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user_id": id, "friend_id": req.FriendID})
	}
}

// RemoveFriendHandler ends a friendship.
func RemoveFriendHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if ok, err := requireSelf(c, id); !ok {
			return err
		}
		if err := deps.Friends.Remove(c.UserContext(), id, c.Params("friendId")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ---- Messages ----

// PostMessageHandler creates a message at the given position.
func PostMessageHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		author, ok, err := requireViewer(c)
		if !ok {
			return err
		}
		var req postMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		at, err := locationRequest{Lat: req.Lat, Lon: req.Lon}.coordinate()
		if err != nil {
			return errFromDomain(c, err)
		}
		vis := domain.Visibility(req.Visibility)
		if vis == "" {
			vis = domain.VisibilityPublic
		}
		m, err := deps.Messages.Post(c.UserContext(), author, req.Text, vis, at)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(m)
	}
}

// queryFloat parses an optional numeric query parameter. present is false
// when the parameter is absent or empty.
func queryFloat(c *fiber.Ctx, key string) (v float64, present bool, err error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, true, fmt.Errorf("%w: %s is not a number", domain.ErrValidation, key)
	}
	return v, true, nil
}

// NearbyMessagesHandler returns the caller's visible neighbourhood.
func NearbyMessagesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		radius, _, err := queryFloat(c, "radius_km")
		if err != nil || math.IsNaN(radius) || radius < 0 {
			return errBadRequest(c, "radius_km must be a positive number")
		}
		q := usecases.FeedQuery{
			ViewerID: viewerID(c),
			Fallback: deps.Fallback,
			RadiusKm: radius,
		}

		lat, hasLat, errLat := queryFloat(c, "lat")
		lon, hasLon, errLon := queryFloat(c, "lon")
		switch {
		case errLat != nil || errLon != nil:
			return errBadRequest(c, "lat and lon must be numbers")
		case hasLat && hasLon:
			at, err := domain.NewCoordinate(lat, lon)
			if err != nil {
				return errFromDomain(c, err)
			}
			q.At = &at
		case hasLat || hasLon:
			return errBadRequest(c, "lat and lon must be given together")
		}

		feed, err := deps.Feed.Nearby(c.UserContext(), q)
		if err != nil {
			return errFromDomain(c, err)
		}

		offset, limit := pageParams(c, 50, 200)
		page, pg := paginate(feed.Messages, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(FeedResponse{
			Viewer:         feed.Viewer,
			LocationSource: feed.LocationSource,
			RadiusKm:       feed.RadiusKm,
			Rejected:       feed.Rejected,
			Data:           page,
			Pagination:     pg,
		})
	}
}

// GetMessageHandler returns a message the caller may see, wherever they are.
func GetMessageHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, err := deps.Messages.GetVisible(c.UserContext(), viewerID(c), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(m)
	}
}

// UserMessagesHandler lists an author's messages visible to the caller.
func UserMessagesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		msgs, err := deps.Messages.ListByAuthor(c.UserContext(), viewerID(c), c.Params("id"), 200)
		if err != nil {
			return errFromDomain(c, err)
		}
		offset, limit := pageParams(c, 50, 200)
		page, pg := paginate(msgs, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// SetVisibilityHandler changes a message's visibility.
func SetVisibilityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok, err := requireViewer(c)
		if !ok {
			return err
		}
		var req visibilityRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		m, err := deps.Messages.SetVisibility(c.UserContext(), actor, c.Params("id"), domain.Visibility(req.Visibility))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(m)
	}
}

// DeleteMessageHandler removes a message and its replies.
func DeleteMessageHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok, err := requireViewer(c)
		if !ok {
			return err
		}
		if err := deps.Messages.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ---- Replies ----

// ListRepliesHandler returns the replies of a visible message.
func ListRepliesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, limit := pageParams(c, 100, 500)
		replies, err := deps.Replies.List(c.UserContext(), viewerID(c), c.Params("id"), limit)
		if err != nil {
			return errFromDomain(c, err)
		}
		if replies == nil {
			replies = []domain.Reply{}
		}
		return c.JSON(PaginatedResponse{Data: replies, Pagination: Pagination{Limit: limit, Total: len(replies)}})
	}
}

// PostReplyHandler replies to a visible message.
func PostReplyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		author, ok, err := requireViewer(c)
		if !ok {
			return err
		}
		var req replyRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		r, err := deps.Replies.Reply(c.UserContext(), author, c.Params("id"), req.Text)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(r)
	}
}

// DeleteReplyHandler removes a reply.
func DeleteReplyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok, err := requireViewer(c)
		if !ok {
			return err
		}
		if err := deps.Replies.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
