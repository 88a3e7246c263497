package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
)

// Scheduler starts purge workflows on Temporal. It implements ports.PurgeScheduler.
type Scheduler struct {
	client    client.Client
	taskQueue string
}

// NewScheduler creates a scheduler for the given task queue.
func NewScheduler(c client.Client, taskQueue string) *Scheduler {
	return &Scheduler{client: c, taskQueue: taskQueue}
}

// PurgeWorkflowID is the workflow ID used for a user; at most one purge per
// user runs at a time.
func PurgeWorkflowID(userID string) string {
	return "purge-account-" + userID
}

// SchedulePurge starts the purge and returns the workflow ID. Starting a
// purge that is already running returns the running workflow.
func (s *Scheduler) SchedulePurge(ctx context.Context, userID string) (string, error) {
	opts := client.StartWorkflowOptions{
		ID:        PurgeWorkflowID(userID),
		TaskQueue: s.taskQueue,
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, PurgeWorkflowName, PurgeInput{UserID: userID})
	if err != nil {
		return "", fmt.Errorf("start purge workflow: %w", err)
	}
	return run.GetID(), nil
}
