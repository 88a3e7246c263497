package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/geobubbles/internal/core/usecases"
)

// PurgeWorkflowName is the registered name of PurgeAccountWorkflow.
const PurgeWorkflowName = "PurgeAccountWorkflow"

// PurgeInput is the input for the account purge workflow.
type PurgeInput struct {
	UserID string
}

// PurgeResult is what the workflow removed.
type PurgeResult struct {
	UserID          string
	MessagesDeleted int
	FriendsRemoved  int
}

// PurgeAccountWorkflow deactivates a user, removes their content and then
// the account itself. If content removal fails the user is reactivated
// (saga compensation) and the error is returned.
func PurgeAccountWorkflow(ctx workflow.Context, input PurgeInput) (*PurgeResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting account purge", "userID", input.UserID)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 5,
		},
	})

	// Step 1: stop new posts, replies and friendships
	if err := workflow.ExecuteActivity(ctx, ActivityDeactivateUser, input.UserID).Get(ctx, nil); err != nil {
		return nil, err
	}

	// Step 2: content
	var report usecases.PurgeReport
	if err := workflow.ExecuteActivity(ctx, ActivityPurgeContent, input.UserID).Get(ctx, &report); err != nil {
		logger.Warn("content purge failed, compensating", "error", err)
		compCtx, _ := workflow.NewDisconnectedContext(ctx)
		if cerr := workflow.ExecuteActivity(compCtx, ActivityReactivateUser, input.UserID).Get(compCtx, nil); cerr != nil {
			logger.Error("reactivation failed", "error", cerr)
		}
		return nil, err
	}

	// Step 3: the account
	if err := workflow.ExecuteActivity(ctx, ActivityDeleteUser, input.UserID).Get(ctx, nil); err != nil {
		return nil, err
	}

	logger.Info("Account purged", "userID", input.UserID, "messages", report.MessagesDeleted)
	return &PurgeResult{
		UserID:          input.UserID,
		MessagesDeleted: report.MessagesDeleted,
		FriendsRemoved:  report.FriendsRemoved,
	}, nil
}

func workflowOptions() workflow.RegisterOptions {
	return workflow.RegisterOptions{Name: PurgeWorkflowName}
}

// Register adds the purge workflow and its activities to a worker.
func Register(r worker.Registry, activities *PurgeActivities) {
	r.RegisterWorkflowWithOptions(PurgeAccountWorkflow, workflowOptions())
	r.RegisterActivity(activities)
}
