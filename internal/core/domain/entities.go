package domain

import (
	"fmt"
	"time"
)

// Visibility is a message's access-control class.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityFriends Visibility = "friends"
)

// ParseVisibility validates a visibility tag.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(s); v {
	case VisibilityPublic, VisibilityFriends:
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown visibility %q", ErrValidation, s)
}

// User is an account that can post bubbles and befriend other users.
type User struct {
	ID                string     `json:"_id" bson:"_id"`
	Username          string     `json:"username" bson:"username"`
	DisplayName       string     `json:"display_name,omitempty" bson:"display_name,omitempty"`
	LastLocation      *GeoPoint  `json:"last_location,omitempty" bson:"last_location,omitempty"`
	LocationUpdatedAt *time.Time `json:"location_updated_at,omitempty" bson:"location_updated_at,omitempty"`
	Active            bool       `json:"active" bson:"active"`
	CreatedAt         time.Time  `json:"created_at" bson:"created_at"`
}

// Message is a bubble anchored to a real-world position.
type Message struct {
	ID         string     `json:"_id" bson:"_id"`
	AuthorID   string     `json:"user_id" bson:"user_id"`
	Text       string     `json:"text" bson:"text"`
	Visibility Visibility `json:"visibility" bson:"visibility"`
	Location   GeoPoint   `json:"location" bson:"location"`
	ReplyCount int        `json:"reply_count" bson:"reply_count"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at"`
	DistanceKm *float64   `json:"distance_km,omitempty" bson:"-"` // computed field
}

// Reply is a comment left on a message.
type Reply struct {
	ID        string    `json:"_id" bson:"_id"`
	MessageID string    `json:"message_id" bson:"message_id"`
	AuthorID  string    `json:"user_id" bson:"user_id"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Friend is one side of a mutual friendship as seen from the other user.
type Friend struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	Since       time.Time `json:"since"`
}

// MessageEvent is published whenever a message changes.
type MessageEvent struct {
	Kind    string    `json:"kind"` // created | updated | deleted
	Message Message   `json:"message"`
	At      time.Time `json:"at"`
}

const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// LocationUpdate is a device position report for a user.
type LocationUpdate struct {
	UserID   string     `json:"user_id"`
	Location Coordinate `json:"location"`
	At       time.Time  `json:"at"`
}
