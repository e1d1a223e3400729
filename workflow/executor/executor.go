package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/converter"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/backend/payload"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/internal/command"
	"github.com/voxflow/go-transcribe/internal/contextvalue"
	"github.com/voxflow/go-transcribe/internal/log"
	"github.com/voxflow/go-transcribe/internal/sync"
	"github.com/voxflow/go-transcribe/internal/tracing"
	"github.com/voxflow/go-transcribe/internal/workflowerrors"
	"github.com/voxflow/go-transcribe/internal/workflowstate"
	"github.com/voxflow/go-transcribe/registry"
	wf "github.com/voxflow/go-transcribe/workflow"
)

type ExecutionResult struct {
	// New status of the workflow instance
	Status core.WorkflowInstanceStatus

	// Decision summarizes what the workflow asked for in this task
	Decision Decision

	// Events executed during the task execution, with sequence ids assigned
	Executed []*history.Event

	// Activities that were scheduled
	ActivityEvents []*history.Event

	// Timers that were scheduled
	TimerEvents []*history.Event

	// Corruption is set when the recorded history could not be replayed. The instance is
	// failed in that case and the error carries the details.
	Corruption error
}

type WorkflowHistoryProvider interface {
	GetWorkflowInstanceHistory(ctx context.Context, instance *core.WorkflowInstance, lastSequenceID *int64) ([]*history.Event, error)
}

type WorkflowExecutor interface {
	ExecuteTask(ctx context.Context, t *backend.WorkflowTask) (*ExecutionResult, error)

	Close()
}

// executor rebuilds the state of a workflow instance by replaying its full history and then
// applies the new events of a task. Every task gets a fresh executor, nothing besides the
// durable history survives between tasks.
type executor struct {
	registry        *registry.Registry
	historyProvider WorkflowHistoryProvider
	workflow        *workflow
	workflowName    string
	workflowState   *workflowstate.WfState
	workflowCtx     sync.Context
	cv              converter.Converter
	clock           clock.Clock
	logger          *slog.Logger
	tracer          trace.Tracer
	lastSequenceID  int64

	workflowSpan trace.Span
	wfTracer     *tracing.WorkflowTracer

	terminated bool
	corruption error
}

func NewExecutor(
	logger *slog.Logger,
	tracer trace.Tracer,
	r *registry.Registry,
	cv converter.Converter,
	historyProvider WorkflowHistoryProvider,
	instance *core.WorkflowInstance,
	clock clock.Clock,
) (WorkflowExecutor, error) {
	wfTracer := tracing.NewWorkflowTracer(tracer)
	s := workflowstate.NewWorkflowState(instance, logger, wfTracer, clock)

	wfCtx := sync.Background()
	wfCtx = contextvalue.WithConverter(wfCtx, cv)
	wfCtx = workflowstate.WithWorkflowState(wfCtx, s)

	return &executor{
		registry:        r,
		historyProvider: historyProvider,
		workflowState:   s,
		workflowCtx:     wfCtx,
		cv:              cv,
		clock:           clock,
		logger:          logger.With(log.InstanceIDKey, instance.InstanceID, log.ExecutionIDKey, instance.ExecutionID),
		tracer:          tracer,
		wfTracer:        wfTracer,
	}, nil
}

func (e *executor) ExecuteTask(ctx context.Context, t *backend.WorkflowTask) (*ExecutionResult, error) {
	logger := e.logger.With(
		log.TaskIDKey, t.ID,
	)

	logger.Debug("Executing workflow task",
		slog.Int64(log.TaskLastSequenceIDKey, t.LastSequenceID),
		slog.Int(log.NewEventsKey, len(t.NewEvents)))

	if t.WorkflowInstanceStatus.Terminal() {
		// Events can still arrive for an instance that already finished, e.g. an activity
		// result racing with a termination. There is nothing left to execute.
		logger.Warn("Received workflow task for finished workflow instance, discarding events",
			log.WorkflowStatusKey, t.WorkflowInstanceStatus.String())

		for _, event := range t.NewEvents {
			logger.Debug("Discarded event",
				log.EventIDKey, event.ID,
				log.EventTypeKey, event.Type.String(),
				log.ScheduleEventIDKey, event.ScheduleEventID)
		}

		return &ExecutionResult{
			Status:   t.WorkflowInstanceStatus,
			Decision: DecisionNone,
		}, nil
	}

	skipNewEvents, err := e.replayHistory(ctx, t, logger)
	if err != nil {
		return nil, err
	}

	// Always add a WorkflowTaskStarted event before executing new events, its timestamp is the
	// logical time the workflow observes for this task
	toExecute := []*history.Event{e.createNewEvent(history.EventType_WorkflowTaskStarted, &history.WorkflowTaskStartedAttributes{})}
	executedEvents := toExecute

	toExecute = append(toExecute, t.NewEvents...)

	if !skipNewEvents {
		var err error
		executedEvents, err = e.executeNewEvents(toExecute, logger)
		if err != nil {
			logger.Error("Error while executing new events", "error", err)

			var rm *errReplayMismatch
			if errors.As(err, &rm) {
				e.corruption = &HistoryCorruptionError{
					Instance:       t.WorkflowInstance,
					Err:            err,
					PendingFutures: e.workflowState.PendingFutureNames(),
				}
				err = workflowerrors.New(workflowerrors.KindHistoryCorruption, e.corruption.Error(), true)
			}

			e.workflowFailed(err)
		}
	}

	// Process any commands added while executing new events
	status := core.WorkflowInstanceStatusRunning
	newCommandEvents := make([]*history.Event, 0)
	activityEvents := make([]*history.Event, 0)
	timerEvents := make([]*history.Event, 0)

	if e.terminated {
		status = core.WorkflowInstanceStatusTerminated
	} else {
		for _, c := range e.workflowState.Commands() {
			if c.State() == command.CommandState_Done {
				continue
			}

			r := c.Execute(e.clock)
			if r == nil {
				continue
			}

			if r.Status.Terminal() {
				if err := core.TransitionStatus(status, r.Status); err != nil {
					return nil, err
				}

				status = r.Status
			}

			newCommandEvents = append(newCommandEvents, r.Events...)
			activityEvents = append(activityEvents, r.ActivityEvents...)
			timerEvents = append(timerEvents, r.TimerEvents...)
		}
	}

	// Events from commands don't have to be executed again, add them to the executed events.
	executedEvents = append(executedEvents, newCommandEvents...)

	// Set SequenceIDs for all executed events
	for i := range executedEvents {
		executedEvents[i].SequenceID = e.nextSequenceID()
	}

	decision := decide(status, activityEvents, timerEvents)

	logger.Debug("Finished workflow task",
		log.ExecutedEventsKey, len(executedEvents),
		log.TaskLastSequenceIDKey, e.lastSequenceID,
		log.WorkflowStatusKey, status.String(),
		log.DecisionKey, decision.String(),
	)

	return &ExecutionResult{
		Status:         status,
		Decision:       decision,
		Executed:       executedEvents,
		ActivityEvents: activityEvents,
		TimerEvents:    timerEvents,
		Corruption:     e.corruption,
	}, nil
}

// replayHistory fetches the full history of the instance and replays it. Returns true if the
// history could not be replayed, in which case the workflow has been failed and new events
// must not be executed.
func (e *executor) replayHistory(ctx context.Context, t *backend.WorkflowTask, logger *slog.Logger) (bool, error) {
	h, err := e.historyProvider.GetWorkflowInstanceHistory(ctx, t.WorkflowInstance, nil)
	if err != nil {
		return false, fmt.Errorf("getting workflow history: %w", err)
	}

	var last int64
	if len(h) > 0 {
		last = h[len(h)-1].SequenceID
	}

	if last != t.LastSequenceID {
		logger.Warn("Task does not match stored history",
			log.TaskLastSequenceIDKey, t.LastSequenceID,
			log.SeqIDKey, last)

		return false, fmt.Errorf("task expected history up to %d, found %d: %w", t.LastSequenceID, last, backend.ErrSequenceConflict)
	}

	if err := history.Validate(h); err != nil {
		return e.replayFailed(t, logger, err), nil
	}

	e.workflowState.SetReplaying(true)
	for _, event := range h {
		if err := e.executeEvent(event); err != nil {
			return e.replayFailed(t, logger, err), nil
		}

		e.lastSequenceID = event.SequenceID
	}

	return false, nil
}

func (e *executor) replayFailed(t *backend.WorkflowTask, logger *slog.Logger, err error) bool {
	corruption := &HistoryCorruptionError{
		Instance:       t.WorkflowInstance,
		Err:            err,
		PendingFutures: e.workflowState.PendingFutureNames(),
	}

	logger.Error("History cannot be replayed, failing workflow instance", "error", corruption)

	e.corruption = corruption

	// Fail workflow with an error. Skip executing new events, but still go through the commands
	e.workflowFailed(workflowerrors.New(workflowerrors.KindHistoryCorruption, corruption.Error(), true))

	// Ensure new events don't get duplicate sequence ids
	e.lastSequenceID = t.LastSequenceID

	return true
}

func (e *executor) executeNewEvents(newEvents []*history.Event, logger *slog.Logger) ([]*history.Event, error) {
	e.workflowState.SetReplaying(false)

	for i, event := range newEvents {
		if e.finished() {
			// The workflow finished with an earlier event. Nothing can be appended after the
			// final event, drop the rest.
			for _, dropped := range newEvents[i:] {
				logger.Warn("Discarding event for finished workflow",
					log.EventIDKey, dropped.ID,
					log.EventTypeKey, dropped.Type.String(),
					log.ScheduleEventIDKey, dropped.ScheduleEventID)
			}

			newEvents = newEvents[:i]
			break
		}

		if err := e.executeEvent(event); err != nil {
			return newEvents[:i], err
		}
	}

	if e.workflow != nil && e.workflow.Completed() && !e.terminated {
		if e.workflowSpan != nil {
			defer e.workflowSpan.End()
		}

		if err := e.workflow.InfrastructureError(); err != nil {
			return newEvents, tracing.WithSpanError(e.workflowSpan, err)
		}

		if e.workflowState.HasPendingFutures() {
			// This should not happen, provide debug information to the developer
			var pending []string
			pf := e.workflowState.PendingFutureNames()
			for id, name := range pf {
				pending = append(pending, fmt.Sprintf("%d-%s", id, name))
			}
			slices.Sort(pending)

			return newEvents, tracing.WithSpanError(
				e.workflowSpan, fmt.Errorf("workflow completed, but there are still pending futures: %s", pending))
		}

		e.workflowCompleted(e.workflow.Result(), e.workflow.Error())
	}

	return newEvents, nil
}

func (e *executor) finished() bool {
	if e.terminated {
		return true
	}

	for _, c := range e.workflowState.Commands() {
		if _, ok := c.(*command.CompleteWorkflowCommand); ok {
			return true
		}
	}

	return false
}

func (e *executor) Close() {
	if e.workflow != nil {
		e.logger.Debug("Stopping workflow executor")

		// End workflow if running to prevent leaking goroutines
		e.workflow.Close()
	}
}

func (e *executor) executeEvent(event *history.Event) error {
	fields := []any{
		log.EventIDKey, event.ID,
		log.SeqIDKey, event.SequenceID,
		log.EventTypeKey, event.Type,
		log.ScheduleEventIDKey, event.ScheduleEventID,
		log.IsReplayingKey, e.workflowState.Replaying(),
	}

	attributesFields := eventLogFields(event)
	if attributesFields != nil {
		fields = append(fields, attributesFields...)
	}

	e.logger.Debug("Executing event", fields...)

	if event.Type != history.EventType_WorkflowExecutionStarted && e.workflow == nil {
		return mismatch("%v before workflow was started", event.Type)
	}

	var err error

	switch event.Type {
	case history.EventType_WorkflowExecutionStarted:
		err = e.handleWorkflowExecutionStarted(event, event.Attributes.(*history.ExecutionStartedAttributes))

	case history.EventType_WorkflowExecutionFinished:
	// Ignore

	case history.EventType_WorkflowExecutionTerminated:
		err = e.handleWorkflowExecutionTerminated(event, event.Attributes.(*history.ExecutionTerminatedAttributes))

	case history.EventType_WorkflowTaskStarted:
		err = e.handleWorkflowTaskStarted(event, event.Attributes.(*history.WorkflowTaskStartedAttributes))

	case history.EventType_ActivityScheduled:
		err = e.handleActivityScheduled(event, event.Attributes.(*history.ActivityScheduledAttributes))

	case history.EventType_ActivityFailed:
		err = e.handleActivityFailed(event, event.Attributes.(*history.ActivityFailedAttributes))

	case history.EventType_ActivityCompleted:
		err = e.handleActivityCompleted(event, event.Attributes.(*history.ActivityCompletedAttributes))

	case history.EventType_TimerScheduled:
		err = e.handleTimerScheduled(event, event.Attributes.(*history.TimerScheduledAttributes))

	case history.EventType_TimerFired:
		err = e.handleTimerFired(event, event.Attributes.(*history.TimerFiredAttributes))

	default:
		return fmt.Errorf("unknown event type: %v", event.Type)
	}

	return err
}

func (e *executor) handleWorkflowExecutionStarted(event *history.Event, a *history.ExecutionStartedAttributes) error {
	e.workflowName = a.Name

	wfFn, err := e.registry.GetWorkflow(a.Name)
	if err != nil {
		return fmt.Errorf("workflow %s not found: %w", a.Name, err)
	}

	_, span := e.tracer.Start(context.Background(), fmt.Sprintf("Workflow: %s", a.Name),
		trace.WithTimestamp(event.Timestamp),
		trace.WithAttributes(
			attribute.String(log.InstanceIDKey, e.workflowState.Instance().InstanceID),
			attribute.String(log.WorkflowNameKey, a.Name),
			attribute.Bool(log.IsReplayingKey, e.workflowState.Replaying()),
		))
	e.workflowSpan = span
	e.wfTracer.UpdateExecution(span)

	e.workflow = newWorkflow(reflect.ValueOf(wfFn))
	return e.workflow.Execute(e.workflowCtx, a.Inputs)
}

func (e *executor) handleWorkflowExecutionTerminated(event *history.Event, a *history.ExecutionTerminatedAttributes) error {
	e.logger.Debug("Terminating workflow instance", "reason", a.Reason)

	e.terminated = true

	// Stop the workflow where it is, termination does not give workflow code a chance to react
	e.workflow.Close()

	if e.workflowSpan != nil {
		e.workflowSpan.SetAttributes(attribute.String(log.WorkflowStatusKey, core.WorkflowInstanceStatusTerminated.String()))
		e.workflowSpan.End()
	}

	return nil
}

func (e *executor) handleWorkflowTaskStarted(event *history.Event, a *history.WorkflowTaskStartedAttributes) error {
	e.workflowState.SetTime(event.Timestamp)

	return nil
}

func (e *executor) handleActivityScheduled(event *history.Event, a *history.ActivityScheduledAttributes) error {
	sac, err := commandAs[*command.ScheduleActivityCommand](e.workflowState, event, "an activity")
	if err != nil {
		return err
	}

	// Ensure the same activity was scheduled again
	if a.Name != sac.ActivityName {
		return mismatch("previous workflow execution scheduled different activity at %d: %s, %s", event.ScheduleEventID, a.Name, sac.ActivityName)
	}

	sac.Commit()

	return nil
}

func (e *executor) handleActivityCompleted(event *history.Event, a *history.ActivityCompletedAttributes) error {
	return resolve[*command.ScheduleActivityCommand](e, event, "an activity", a.Result, nil)
}

func (e *executor) handleActivityFailed(event *history.Event, a *history.ActivityFailedAttributes) error {
	return resolve[*command.ScheduleActivityCommand](e, event, "an activity", nil, workflowerrors.ToError(a.Error))
}

// resolve hands the recorded outcome of a scheduled command to the future the workflow is
// waiting on and lets the workflow continue until it blocks again.
func resolve[T command.Command](e *executor, event *history.Event, what string, result payload.Payload, err error) error {
	f, ok := e.workflowState.FutureByScheduleEventID(event.ScheduleEventID)
	if !ok {
		return mismatch("%v for %s at %d without a pending future", event.Type, what, event.ScheduleEventID)
	}

	if err := f.Set(result, err); err != nil {
		return fmt.Errorf("setting result of %v: %w", event.Type, err)
	}

	e.workflowState.RemoveFuture(event.ScheduleEventID)

	c, cerr := commandAs[T](e.workflowState, event, what)
	if cerr != nil {
		return cerr
	}

	c.Done()

	return e.workflow.Continue()
}

func (e *executor) handleTimerScheduled(event *history.Event, a *history.TimerScheduledAttributes) error {
	stc, err := commandAs[*command.ScheduleTimerCommand](e.workflowState, event, "a timer")
	if err != nil {
		return err
	}

	if !stc.At.Equal(a.At) {
		return mismatch("previous workflow execution scheduled timer %d for %v, now for %v", event.ScheduleEventID, a.At, stc.At)
	}

	stc.Commit()

	return nil
}

func (e *executor) handleTimerFired(event *history.Event, a *history.TimerFiredAttributes) error {
	if !e.workflowState.Replaying() {
		spanName := "Timer"
		if a.Name != "" {
			spanName += ": " + a.Name
		}

		span := e.wfTracer.Start(spanName, trace.WithAttributes(
			attribute.Int64(log.DurationKey, a.At.Sub(a.ScheduledAt).Milliseconds()),
			attribute.String(log.NowKey, a.ScheduledAt.String()),
			attribute.String(log.AtKey, a.At.String()),
		), trace.WithTimestamp(a.ScheduledAt))
		span.End()
	}

	return resolve[*command.ScheduleTimerCommand](e, event, "a timer", nil, nil)
}

func commandAs[T command.Command](s *workflowstate.WfState, event *history.Event, what string) (T, error) {
	var t T

	c := s.CommandByScheduleEventID(event.ScheduleEventID)
	if c == nil {
		return t, mismatch("previous workflow execution scheduled %s at %d which could not be found", what, event.ScheduleEventID)
	}

	t, ok := c.(T)
	if !ok {
		return t, mismatch("previous workflow execution scheduled %s at %d, not: %v", what, event.ScheduleEventID, c.Name())
	}

	return t, nil
}

func (e *executor) workflowCompleted(result payload.Payload, wfErr error) {
	status := core.WorkflowInstanceStatusCompleted

	switch {
	case wfErr == nil:
	case errors.Is(wfErr, wf.ErrTimeoutExceeded):
		status = core.WorkflowInstanceStatusTimedOut
	default:
		status = core.WorkflowInstanceStatusFailed
	}

	if e.workflowSpan != nil {
		e.workflowSpan.SetAttributes(attribute.String(log.WorkflowStatusKey, status.String()))
	}

	eventId := e.workflowState.GetNextScheduleEventID()

	cmd := command.NewCompleteWorkflowCommand(eventId, status, result, workflowerrors.FromError(wfErr))
	e.workflowState.AddCommand(cmd)
}

func (e *executor) workflowFailed(err error) {
	if e.finished() {
		return
	}

	// Anything scheduled but not recorded yet is abandoned with the instance
	for _, c := range e.workflowState.Commands() {
		if c.State() == command.CommandState_Pending {
			c.Commit()
		}
	}

	if e.workflowSpan != nil {
		_ = tracing.WithSpanError(e.workflowSpan, err)
		e.workflowSpan.End()
	}

	eventId := e.workflowState.GetNextScheduleEventID()

	cmd := command.NewCompleteWorkflowCommand(eventId, core.WorkflowInstanceStatusFailed, nil, workflowerrors.FromError(err))
	e.workflowState.AddCommand(cmd)
}

func (e *executor) nextSequenceID() int64 {
	e.lastSequenceID++
	return e.lastSequenceID
}

func (e *executor) createNewEvent(eventType history.EventType, attributes interface{}, opts ...history.HistoryEventOption) *history.Event {
	return history.NewPendingEvent(
		e.clock.Now(),
		eventType,
		attributes,
		opts...,
	)
}

// eventLogFields returns the attributes worth logging for an event
func eventLogFields(event *history.Event) []any {
	switch event.Type {
	case history.EventType_WorkflowExecutionStarted:
		attributes := event.Attributes.(*history.ExecutionStartedAttributes)
		return []any{
			log.WorkflowNameKey, attributes.Name,
		}
	case history.EventType_ActivityScheduled:
		attributes := event.Attributes.(*history.ActivityScheduledAttributes)
		return []any{
			log.ActivityNameKey, attributes.Name,
			log.AttemptKey, attributes.Attempt,
		}
	case history.EventType_TimerScheduled:
		attributes := event.Attributes.(*history.TimerScheduledAttributes)
		return []any{
			log.AtKey, attributes.At,
		}
	default:
		return nil
	}
}
