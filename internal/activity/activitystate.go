package activity

import (
	"context"
	"log/slog"

	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/internal/log"
)

type ActivityState struct {
	ActivityID string
	Name       string
	Attempt    int
	Instance   *core.WorkflowInstance
	Logger     *slog.Logger
}

func NewActivityState(activityID, name string, attempt int, instance *core.WorkflowInstance, logger *slog.Logger) *ActivityState {
	return &ActivityState{
		ActivityID: activityID,
		Name:       name,
		Attempt:    attempt,
		Instance:   instance,
		Logger: logger.With(
			log.ActivityIDKey, activityID,
			log.ActivityNameKey, name,
			log.AttemptKey, attempt,
			log.InstanceIDKey, instance.InstanceID,
			log.ExecutionIDKey, instance.ExecutionID,
		),
	}
}

type key int

var activityCtxKey key

func WithActivityState(ctx context.Context, as *ActivityState) context.Context {
	return context.WithValue(ctx, activityCtxKey, as)
}

func GetActivityState(ctx context.Context) *ActivityState {
	as, ok := ctx.Value(activityCtxKey).(*ActivityState)
	if !ok {
		return nil
	}

	return as
}
