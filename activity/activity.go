package activity

import (
	"context"
	"log/slog"

	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/internal/activity"
)

// Logger returns a logger with the workflow instance this activity is executed for set as default fields
func Logger(ctx context.Context) *slog.Logger {
	if as := activity.GetActivityState(ctx); as != nil {
		return as.Logger
	}

	return slog.Default()
}

type Info struct {
	ActivityID string
	Name       string

	// Attempt is 1 for the first execution of an activity and increases with every retry
	Attempt int

	WorkflowInstance *core.WorkflowInstance
}

// GetInfo returns information about the currently executing activity. Returns nil outside of activities.
func GetInfo(ctx context.Context) *Info {
	as := activity.GetActivityState(ctx)
	if as == nil {
		return nil
	}

	return &Info{
		ActivityID:       as.ActivityID,
		Name:             as.Name,
		Attempt:          as.Attempt,
		WorkflowInstance: as.Instance,
	}
}
