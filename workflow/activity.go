package workflow

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	a "github.com/voxflow/go-transcribe/internal/args"
	"github.com/voxflow/go-transcribe/internal/command"
	"github.com/voxflow/go-transcribe/internal/fn"
	"github.com/voxflow/go-transcribe/internal/log"
	"github.com/voxflow/go-transcribe/internal/sync"
	"github.com/voxflow/go-transcribe/internal/workflowerrors"
	"github.com/voxflow/go-transcribe/internal/workflowstate"
)

type ActivityOptions struct {
	RetryOptions RetryOptions
}

var DefaultActivityOptions = ActivityOptions{
	RetryOptions: DefaultRetryOptions,
}

// ExecuteActivity schedules the given activity to be executed. The activity is identified by
// its name in the history, either the function name or the method name for activities
// registered from a struct. Failed attempts with transient errors are retried according to
// the retry options, with durable timers between attempts.
func ExecuteActivity[TResult any](ctx Context, options ActivityOptions, activity Activity, args ...any) Future[TResult] {
	return withRetries(ctx, options.RetryOptions, func(ctx Context, attempt int) Future[TResult] {
		return executeActivity[TResult](ctx, attempt, activity, args...)
	})
}

func executeActivity[TResult any](ctx Context, attempt int, activity Activity, args ...any) Future[TResult] {
	f := sync.NewFuture[TResult]()

	// Check return type
	if err := a.ReturnTypeMatch[TResult](activity); err != nil {
		_ = f.Set(*new(TResult), workflowerrors.NewPermanentError(err))
		return f
	}

	// Check arguments, skip the context parameter
	if err := a.ParamsMatch(activity, 1, args...); err != nil {
		_ = f.Set(*new(TResult), workflowerrors.NewPermanentError(err))
		return f
	}

	cv := converterOf(ctx)
	inputs, err := a.ArgsToInputs(cv, args...)
	if err != nil {
		_ = f.Set(*new(TResult), workflowerrors.NewPermanentError(fmt.Errorf("converting activity input: %w", err)))
		return f
	}

	wfState := workflowstate.WorkflowState(ctx)
	scheduleEventID := wfState.GetNextScheduleEventID()

	name := fn.Name(activity)

	cmd := command.NewScheduleActivityCommand(scheduleEventID, name, inputs, attempt)
	wfState.AddCommand(cmd)
	wfState.TrackFuture(scheduleEventID, workflowstate.AsDecodingSettable(cv, name, f))

	if !wfState.Replaying() {
		span := wfState.Tracer().Start(fmt.Sprintf("ExecuteActivity: %s", name),
			trace.WithAttributes(
				attribute.String(log.ActivityNameKey, name),
				attribute.Int64(log.ScheduleEventIDKey, scheduleEventID),
				attribute.Int(log.AttemptKey, attempt),
			))
		span.End()
	}

	return f
}
