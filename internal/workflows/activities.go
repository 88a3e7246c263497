package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/core/usecases"
	"github.com/samirrijal/geobubbles/internal/pkg/metrics"
)

// Activity names as registered on the worker.
const (
	ActivityDeactivateUser = "DeactivateUser"
	ActivityPurgeContent   = "PurgeContent"
	ActivityDeleteUser     = "DeleteUser"
	ActivityReactivateUser = "ReactivateUser"
)

// PurgeActivities holds the activity implementations for the account purge workflow.
type PurgeActivities struct {
	Accounts *usecases.AccountService
}

// DeactivateUser hides the account from new interactions. A missing user is
// not retryable.
func (a *PurgeActivities) DeactivateUser(ctx context.Context, userID string) error {
	if err := a.Accounts.Deactivate(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return temporal.NewNonRetryableApplicationError("user not found", "NotFound", err)
		}
		return fmt.Errorf("deactivate %s: %w", userID, err)
	}
	return nil
}

// PurgeContent removes replies, messages, friendships and cache entries.
func (a *PurgeActivities) PurgeContent(ctx context.Context, userID string) (*usecases.PurgeReport, error) {
	report, err := a.Accounts.PurgeContent(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("purge content %s: %w", userID, err)
	}
	return report, nil
}

// DeleteUser removes the account row.
func (a *PurgeActivities) DeleteUser(ctx context.Context, userID string) error {
	if err := a.Accounts.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	metrics.AccountPurges.WithLabelValues("workflow", "completed").Inc()
	return nil
}

// ReactivateUser undoes DeactivateUser (saga compensation).
func (a *PurgeActivities) ReactivateUser(ctx context.Context, userID string) error {
	if err := a.Accounts.Reactivate(ctx, userID); err != nil {
		return fmt.Errorf("reactivate %s: %w", userID, err)
	}
	metrics.AccountPurges.WithLabelValues("workflow", "compensated").Inc()
	slog.Warn("account purge compensated", "user_id", userID)
	return nil
}
