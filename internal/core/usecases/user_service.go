package usecases

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/core/ports"
	"github.com/samirrijal/geobubbles/internal/pkg/logging"
	"github.com/samirrijal/geobubbles/internal/pkg/metrics"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,32}$`)

// UserService handles account and viewer-location logic.
type UserService struct {
	users     ports.UserRepository
	publisher ports.EventPublisher
}

// NewUserService creates a new UserService. publisher may be nil.
func NewUserService(users ports.UserRepository, publisher ports.EventPublisher) *UserService {
	return &UserService{users: users, publisher: publisher}
}

// Register creates an active account with a unique username.
func (s *UserService) Register(ctx context.Context, username, displayName string) (*domain.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("%w: username must be 3-32 characters of a-z, 0-9, _ or .", domain.ErrValidation)
	}
	if len(displayName) > 64 {
		return nil, fmt.Errorf("%w: display name too long (max 64 characters)", domain.ErrValidation)
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("%w: username %q is taken", domain.ErrConflict, username)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}

	u := &domain.User{
		Username:    username,
		DisplayName: strings.TrimSpace(displayName),
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// requireActive loads a user and fails with ErrInactiveUser if it is deactivated.
func (s *UserService) requireActive(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, domain.ErrInactiveUser
	}
	return u, nil
}

// UpdateLocation records the device position of a user and announces it.
func (s *UserService) UpdateLocation(ctx context.Context, id string, at domain.Coordinate) error {
	if _, err := s.requireActive(ctx, id); err != nil {
		return err
	}
	if err := s.users.UpdateLocation(ctx, id, domain.FromCoordinate(at)); err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	metrics.LocationUpdates.WithLabelValues("api").Inc()

	if s.publisher != nil {
		update := &domain.LocationUpdate{UserID: id, Location: at, At: time.Now().UTC()}
		if err := s.publisher.PublishLocationUpdate(ctx, update); err != nil {
			logging.FromContext(ctx).Warn("publish location update failed", "user_id", id, "error", err)
		}
	}
	return nil
}

// ApplyLocationUpdate stores a location reported through the event stream.
func (s *UserService) ApplyLocationUpdate(ctx context.Context, update *domain.LocationUpdate) error {
	at, err := domain.NewCoordinate(update.Location.Lat, update.Location.Lon)
	if err != nil {
		return err
	}
	if err := s.users.UpdateLocation(ctx, update.UserID, domain.FromCoordinate(at)); err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	metrics.LocationUpdates.WithLabelValues("stream").Inc()
	return nil
}

// ViewerLocation returns the last reported position of a user.
func (s *UserService) ViewerLocation(ctx context.Context, id string) (domain.Coordinate, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return domain.Coordinate{}, err
	}
	if u.LastLocation == nil {
		return domain.Coordinate{}, domain.ErrLocationUnavailable
	}
	return domain.ToCoordinate(*u.LastLocation)
}
