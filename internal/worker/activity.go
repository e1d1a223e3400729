package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/backend/metrics"
	"github.com/voxflow/go-transcribe/internal/activity"
	"github.com/voxflow/go-transcribe/internal/log"
	"github.com/voxflow/go-transcribe/internal/metrickeys"
	im "github.com/voxflow/go-transcribe/internal/metrics"
	"github.com/voxflow/go-transcribe/internal/tracing"
	"github.com/voxflow/go-transcribe/internal/workflowerrors"
	"github.com/voxflow/go-transcribe/registry"
)

func NewActivityWorker(
	b backend.Backend,
	registry *registry.Registry,
	options WorkerOptions,
) *Worker[backend.ActivityTask, history.Event] {
	opts := b.Options()

	tw := &ActivityTaskWorker{
		backend:  b,
		executor: activity.NewExecutor(opts.Logger, tracing.Tracer(opts.TracerProvider), opts.Converter, registry),
		logger:   opts.Logger,
		clock:    opts.Clock,
	}

	return NewWorker[backend.ActivityTask, history.Event](opts.Logger, tw, &options)
}

// ActivityTaskWorker executes one attempt of an activity and reports the outcome as a pending
// event for its workflow instance.
type ActivityTaskWorker struct {
	backend  backend.Backend
	executor *activity.Executor
	logger   *slog.Logger
	clock    clock.Clock
}

var _ TaskWorker[backend.ActivityTask, history.Event] = (*ActivityTaskWorker)(nil)

func (atw *ActivityTaskWorker) Get(ctx context.Context) (*backend.ActivityTask, error) {
	return atw.backend.GetActivityTask(ctx)
}

func (atw *ActivityTaskWorker) Extend(ctx context.Context, task *backend.ActivityTask) error {
	return atw.backend.ExtendActivityTask(ctx, task)
}

func (atw *ActivityTaskWorker) Execute(ctx context.Context, task *backend.ActivityTask) (*history.Event, error) {
	a := task.Event.Attributes.(*history.ActivityScheduledAttributes)
	ametrics := atw.backend.Metrics().WithTags(metrics.Tags{metrickeys.ActivityName: a.Name})

	// Record how long this task was in the queue
	scheduledAt := task.Event.Timestamp
	timeInQueue := atw.clock.Since(scheduledAt)
	ametrics.Distribution(metrickeys.ActivityTaskDelay, metrics.Tags{}, float64(timeInQueue/time.Millisecond))

	timer := im.NewTimer(ametrics, atw.clock, metrickeys.ActivityTaskProcessed, metrics.Tags{})
	defer timer.Stop()

	result, err := atw.executor.ExecuteActivity(ctx, task)
	if err != nil {
		atw.logger.WarnContext(ctx, "Activity failed",
			log.ActivityNameKey, a.Name,
			log.AttemptKey, a.Attempt,
			log.InstanceIDKey, task.WorkflowInstance.InstanceID,
			log.ScheduleEventIDKey, task.Event.ScheduleEventID,
			"retryable", workflowerrors.CanRetry(err),
			"error", err)

		return history.NewPendingEvent(
			atw.clock.Now(),
			history.EventType_ActivityFailed,
			&history.ActivityFailedAttributes{
				Error: workflowerrors.FromError(err),
			},
			history.ScheduleEventID(task.Event.ScheduleEventID),
		), nil
	}

	return history.NewPendingEvent(
		atw.clock.Now(),
		history.EventType_ActivityCompleted,
		&history.ActivityCompletedAttributes{
			Result: result,
		},
		history.ScheduleEventID(task.Event.ScheduleEventID),
	), nil
}

func (atw *ActivityTaskWorker) Complete(ctx context.Context, event *history.Event, task *backend.ActivityTask) error {
	if err := atw.backend.CompleteActivityTask(ctx, task, event); err != nil {
		return fmt.Errorf("completing activity task: %w", err)
	}

	return nil
}
