package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/core/usecases"
)

type gqlViewerKey struct{}

var errGraphQLAuth = errors.New(HeaderUserID + " header is required")

func gqlViewer(ctx context.Context) string {
	v, _ := ctx.Value(gqlViewerKey{}).(string)
	return v
}

func requireGQLViewer(ctx context.Context) (string, error) {
	if v := gqlViewer(ctx); v != "" {
		return v, nil
	}
	return "", errGraphQLAuth
}

func messageMap(m *domain.Message) map[string]interface{} {
	out := map[string]interface{}{
		"id":          m.ID,
		"user_id":     m.AuthorID,
		"text":        m.Text,
		"visibility":  string(m.Visibility),
		"reply_count": m.ReplyCount,
		"created_at":  m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if c, err := domain.ToCoordinate(m.Location); err == nil {
		out["location"] = map[string]interface{}{"lat": c.Lat, "lon": c.Lon}
	}
	if m.DistanceKm != nil {
		out["distance_km"] = *m.DistanceKm
	}
	return out
}

func replyMap(r *domain.Reply) map[string]interface{} {
	return map[string]interface{}{
		"id":         r.ID,
		"message_id": r.MessageID,
		"user_id":    r.AuthorID,
		"text":       r.Text,
		"created_at": r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	messageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Message",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"user_id":     &graphql.Field{Type: graphql.String},
			"text":        &graphql.Field{Type: graphql.String},
			"visibility":  &graphql.Field{Type: graphql.String},
			"location":    &graphql.Field{Type: geoPointType},
			"reply_count": &graphql.Field{Type: graphql.Int},
			"distance_km": &graphql.Field{Type: graphql.Float},
			"created_at":  &graphql.Field{Type: graphql.String},
		},
	})

	replyType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Reply",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"message_id": &graphql.Field{Type: graphql.String},
			"user_id":    &graphql.Field{Type: graphql.String},
			"text":       &graphql.Field{Type: graphql.String},
			"created_at": &graphql.Field{Type: graphql.String},
		},
	})

	friendType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Friend",
		Fields: graphql.Fields{
			"user_id":      &graphql.Field{Type: graphql.String},
			"username":     &graphql.Field{Type: graphql.String},
			"display_name": &graphql.Field{Type: graphql.String},
		},
	})

	userType := graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"username":     &graphql.Field{Type: graphql.String},
			"display_name": &graphql.Field{Type: graphql.String},
			"active":       &graphql.Field{Type: graphql.Boolean},
		},
	})

	feedType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Feed",
		Fields: graphql.Fields{
			"viewer":          &graphql.Field{Type: geoPointType},
			"location_source": &graphql.Field{Type: graphql.String},
			"radius_km":       &graphql.Field{Type: graphql.Float},
			"rejected":        &graphql.Field{Type: graphql.Int},
			"messages":        &graphql.Field{Type: graphql.NewList(messageType)},
		},
	})

	messages := func(ms []domain.Message) []map[string]interface{} {
		out := make([]map[string]interface{}, len(ms))
		for i := range ms {
			out[i] = messageMap(&ms[i])
		}
		return out
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"nearbyMessages": &graphql.Field{
				Type:        feedType,
				Description: "Messages visible to the caller around a position",
				Args: graphql.FieldConfigArgument{
					"lat":       &graphql.ArgumentConfig{Type: graphql.Float},
					"lon":       &graphql.ArgumentConfig{Type: graphql.Float},
					"radius_km": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					q := usecases.FeedQuery{
						ViewerID: gqlViewer(p.Context),
						Fallback: deps.Fallback,
						RadiusKm: p.Args["radius_km"].(float64),
					}
					lat, hasLat := p.Args["lat"].(float64)
					lon, hasLon := p.Args["lon"].(float64)
					if hasLat != hasLon {
						return nil, errMissingLatLon
					}
					if hasLat {
						q.At = &domain.Coordinate{Lat: lat, Lon: lon}
					}
					feed, err := deps.Feed.Nearby(p.Context, q)
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"viewer":          map[string]interface{}{"lat": feed.Viewer.Lat, "lon": feed.Viewer.Lon},
						"location_source": feed.LocationSource,
						"radius_km":       feed.RadiusKm,
						"rejected":        feed.Rejected,
						"messages":        messages(feed.Messages),
					}, nil
				},
			},
			"message": &graphql.Field{
				Type:        messageType,
				Description: "Get a message by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					m, err := deps.Messages.GetVisible(p.Context, gqlViewer(p.Context), p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return messageMap(m), nil
				},
			},
			"replies": &graphql.Field{
				Type:        graphql.NewList(replyType),
				Description: "Replies to a message",
				Args: graphql.FieldConfigArgument{
					"message_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit":      &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					rs, err := deps.Replies.List(p.Context, gqlViewer(p.Context), p.Args["message_id"].(string), p.Args["limit"].(int))
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, len(rs))
					for i := range rs {
						out[i] = replyMap(&rs[i])
					}
					return out, nil
				},
			},
			"friends": &graphql.Field{
				Type:        graphql.NewList(friendType),
				Description: "The caller's friends",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					viewer, err := requireGQLViewer(p.Context)
					if err != nil {
						return nil, err
					}
					return deps.Friends.List(p.Context, viewer)
				},
			},
			"user": &graphql.Field{
				Type:        userType,
				Description: "Get a user by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					u, err := deps.Users.Get(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"id":           u.ID,
						"username":     u.Username,
						"display_name": u.DisplayName,
						"active":       u.Active,
					}, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"postMessage": &graphql.Field{
				Type: messageType,
				Args: graphql.FieldConfigArgument{
					"text":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"visibility": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: string(domain.VisibilityPublic)},
					"lat":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					viewer, err := requireGQLViewer(p.Context)
					if err != nil {
						return nil, err
					}
					at := domain.Coordinate{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)}
					m, err := deps.Messages.Post(p.Context, viewer, p.Args["text"].(string), domain.Visibility(p.Args["visibility"].(string)), at)
					if err != nil {
						return nil, err
					}
					return messageMap(m), nil
				},
			},
			"setVisibility": &graphql.Field{
				Type: messageType,
				Args: graphql.FieldConfigArgument{
					"id":         &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"visibility": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					viewer, err := requireGQLViewer(p.Context)
					if err != nil {
						return nil, err
					}
					m, err := deps.Messages.SetVisibility(p.Context, viewer, p.Args["id"].(string), domain.Visibility(p.Args["visibility"].(string)))
					if err != nil {
						return nil, err
					}
					return messageMap(m), nil
				},
			},
			"reply": &graphql.Field{
				Type: replyType,
				Args: graphql.FieldConfigArgument{
					"message_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"text":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					viewer, err := requireGQLViewer(p.Context)
					if err != nil {
						return nil, err
					}
					r, err := deps.Replies.Reply(p.Context, viewer, p.Args["message_id"].(string), p.Args["text"].(string))
					if err != nil {
						return nil, err
					}
					return replyMap(r), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		ctx := context.WithValue(c.UserContext(), gqlViewerKey{}, viewerID(c))
		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        ctx,
		})

		return c.JSON(result)
	}
}
