package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/metrics"
	"github.com/voxflow/go-transcribe/internal/log"
	"github.com/voxflow/go-transcribe/internal/metrickeys"
	im "github.com/voxflow/go-transcribe/internal/metrics"
	"github.com/voxflow/go-transcribe/internal/tracing"
	"github.com/voxflow/go-transcribe/registry"
	"github.com/voxflow/go-transcribe/workflow/executor"
)

type WorkflowWorkerOptions struct {
	WorkerOptions

	// HistoryProvider is used to load histories for replay. Defaults to the backend.
	HistoryProvider executor.WorkflowHistoryProvider

	// OnFinished is called after a task moved an instance to a terminal status
	OnFinished func(*backend.WorkflowTask)
}

func NewWorkflowWorker(
	b backend.Backend,
	registry *registry.Registry,
	options WorkflowWorkerOptions,
) *Worker[backend.WorkflowTask, executor.ExecutionResult] {
	if options.HistoryProvider == nil {
		options.HistoryProvider = b
	}

	tw := &WorkflowTaskWorker{
		backend:         b,
		registry:        registry,
		historyProvider: options.HistoryProvider,
		onFinished:      options.OnFinished,
		logger:          b.Options().Logger,
		clock:           b.Options().Clock,
	}

	return NewWorker[backend.WorkflowTask, executor.ExecutionResult](b.Options().Logger, tw, &options.WorkerOptions)
}

// WorkflowTaskWorker executes workflow tasks. Each task replays the instance's history in a
// fresh executor and checkpoints the new events back to the backend.
type WorkflowTaskWorker struct {
	backend         backend.Backend
	registry        *registry.Registry
	historyProvider executor.WorkflowHistoryProvider
	onFinished      func(*backend.WorkflowTask)
	logger          *slog.Logger
	clock           clock.Clock
}

var _ TaskWorker[backend.WorkflowTask, executor.ExecutionResult] = (*WorkflowTaskWorker)(nil)

func (wtw *WorkflowTaskWorker) Get(ctx context.Context) (*backend.WorkflowTask, error) {
	t, err := wtw.backend.GetWorkflowTask(ctx)
	if err != nil {
		return nil, err
	}

	return t, nil
}

func (wtw *WorkflowTaskWorker) Extend(ctx context.Context, t *backend.WorkflowTask) error {
	return wtw.backend.ExtendWorkflowTask(ctx, t)
}

func (wtw *WorkflowTaskWorker) Execute(ctx context.Context, t *backend.WorkflowTask) (*executor.ExecutionResult, error) {
	if len(t.NewEvents) > 0 {
		// Record how long this task was waiting to be picked up
		firstEvent := t.NewEvents[0]
		timeInQueue := wtw.clock.Since(firstEvent.Timestamp)
		wtw.backend.Metrics().Distribution(metrickeys.WorkflowTaskDelay, metrics.Tags{}, float64(timeInQueue/time.Millisecond))
	}

	timer := im.NewTimer(wtw.backend.Metrics(), wtw.clock, metrickeys.WorkflowTaskDuration, metrics.Tags{})
	defer timer.Stop()

	e, err := executor.NewExecutor(
		wtw.logger,
		tracing.Tracer(wtw.backend.Options().TracerProvider),
		wtw.registry,
		wtw.backend.Options().Converter,
		wtw.historyProvider,
		t.WorkflowInstance,
		wtw.clock,
	)
	if err != nil {
		return nil, fmt.Errorf("creating workflow task executor: %w", err)
	}

	// Every task replays from the start, nothing is kept between tasks
	defer e.Close()

	result, err := e.ExecuteTask(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("executing workflow task: %w", err)
	}

	if result.Corruption != nil {
		wtw.logger.ErrorContext(ctx, "Workflow instance history is corrupted",
			log.InstanceIDKey, t.WorkflowInstance.InstanceID,
			"error", result.Corruption)
	}

	return result, nil
}

func (wtw *WorkflowTaskWorker) Complete(ctx context.Context, result *executor.ExecutionResult, t *backend.WorkflowTask) error {
	logger := wtw.logger.With(
		log.TaskIDKey, t.ID,
		log.InstanceIDKey, t.WorkflowInstance.InstanceID,
		log.ExecutionIDKey, t.WorkflowInstance.ExecutionID,
	)

	status := result.Status

	if err := wtw.backend.CompleteWorkflowTask(
		ctx, t, status, result.Executed, result.ActivityEvents, result.TimerEvents); err != nil {
		if errors.Is(err, backend.ErrSequenceConflict) || errors.Is(err, backend.ErrTaskNotFound) {
			// Another worker checkpointed this instance first. The events are redelivered in a
			// new task, discard our result.
			logger.WarnContext(ctx, "Discarding workflow task result", "error", err)

			return nil
		}

		logger.ErrorContext(ctx, "Could not complete workflow task", "error", err)
		return fmt.Errorf("completing workflow task: %w", err)
	}

	wtw.backend.Metrics().Counter(metrickeys.WorkflowTaskProcessed, metrics.Tags{metrickeys.Outcome: result.Decision.String()}, 1)

	if len(result.ActivityEvents) > 0 {
		wtw.backend.Metrics().Counter(metrickeys.ActivityTaskScheduled, metrics.Tags{}, int64(len(result.ActivityEvents)))
	}

	if len(result.TimerEvents) > 0 {
		wtw.backend.Metrics().Counter(metrickeys.TimerScheduled, metrics.Tags{}, int64(len(result.TimerEvents)))
	}

	if status.Terminal() && len(result.Executed) > 0 {
		wtw.backend.Metrics().Counter(metrickeys.WorkflowInstanceFinished, metrics.Tags{metrickeys.Status: status.String()}, 1)

		logger.InfoContext(ctx, "Workflow instance finished",
			log.WorkflowStatusKey, status.String(),
			log.DecisionKey, result.Decision.String())

		if wtw.onFinished != nil {
			wtw.onFinished(t)
		}
	}

	return nil
}
