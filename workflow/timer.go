package workflow

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxflow/go-transcribe/internal/command"
	"github.com/voxflow/go-transcribe/internal/log"
	"github.com/voxflow/go-transcribe/internal/sync"
	"github.com/voxflow/go-transcribe/internal/workflowstate"
)

type timerConfig struct {
	name string
}

type TimerOption func(*timerConfig)

// WithTimerName records a name for the timer in the history, useful when inspecting instances.
func WithTimerName(name string) TimerOption {
	return func(c *timerConfig) {
		c.name = name
	}
}

// ScheduleTimer schedules a durable timer firing delay after the current logical time. The
// returned future resolves once the timer fired, which is never before its fire time.
func ScheduleTimer(ctx Context, delay time.Duration, opts ...TimerOption) Future[struct{}] {
	cfg := timerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	wfState := workflowstate.WorkflowState(ctx)

	scheduleEventID := wfState.GetNextScheduleEventID()
	at := Now(ctx).Add(delay)

	timerCmd := command.NewScheduleTimerCommand(scheduleEventID, at, cfg.name)
	wfState.AddCommand(timerCmd)

	f := sync.NewFuture[struct{}]()
	wfState.TrackFuture(scheduleEventID, workflowstate.AsDecodingSettable(converterOf(ctx), "Timer", f))

	if !wfState.Replaying() {
		span := wfState.Tracer().Start("ScheduleTimer", trace.WithAttributes(
			attribute.Int64(log.ScheduleEventIDKey, scheduleEventID),
			attribute.Int64(log.DurationKey, int64(delay/time.Millisecond)),
			attribute.String(log.AtKey, at.String()),
		))
		span.End()
	}

	return f
}

// Sleep blocks the workflow for the given duration using a durable timer.
func Sleep(ctx Context, d time.Duration, opts ...TimerOption) error {
	_, err := ScheduleTimer(ctx, d, opts...).Get(ctx)

	return err
}
