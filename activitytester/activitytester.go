package activitytester

import (
	"context"
	"log/slog"

	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/internal/activity"
)

// WithActivityTestState returns a context with an activity state attached that can be used for unit testing
// activities. The attempt is set to 1.
func WithActivityTestState(ctx context.Context, activityID, instanceID string, logger *slog.Logger) context.Context {
	return WithActivityTestAttempt(ctx, activityID, instanceID, 1, logger)
}

// WithActivityTestAttempt is like WithActivityTestState but allows testing retry-aware activities.
func WithActivityTestAttempt(ctx context.Context, activityID, instanceID string, attempt int, logger *slog.Logger) context.Context {
	if logger == nil {
		logger = slog.Default()
	}

	return activity.WithActivityState(ctx, activity.NewActivityState(activityID, "", attempt, core.NewWorkflowInstance(instanceID, ""), logger))
}
