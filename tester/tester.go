package tester

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/converter"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/backend/payload"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/internal/activity"
	"github.com/voxflow/go-transcribe/internal/args"
	"github.com/voxflow/go-transcribe/internal/fn"
	"github.com/voxflow/go-transcribe/internal/log"
	"github.com/voxflow/go-transcribe/internal/workflowerrors"
	"github.com/voxflow/go-transcribe/registry"
	"github.com/voxflow/go-transcribe/workflow"
	"github.com/voxflow/go-transcribe/workflow/executor"
)

type testHistoryProvider struct {
	history []*history.Event
}

func (t *testHistoryProvider) GetWorkflowInstanceHistory(ctx context.Context, instance *core.WorkflowInstance, lastSequenceID *int64) ([]*history.Event, error) {
	return t.history, nil
}

type WorkflowTester[TResult any] interface {
	// Now returns the current time of the simulated clock in the tester.
	Now() time.Time

	// Execute executes the workflow under test with the given inputs until it reaches a terminal status.
	Execute(ctx context.Context, args ...any)

	// Registry returns the registry used by the tester.
	Registry() *registry.Registry

	// OnActivity registers a mock activity.
	OnActivity(activity workflow.Activity, args ...any) *mock.Call

	// OnActivityByName registers a mock activity with the given name.
	OnActivityByName(name string, activity workflow.Activity, args ...any) *mock.Call

	// ScheduleCallback schedules the given callback after the given delay in workflow time (not wall clock).
	ScheduleCallback(delay time.Duration, callback func())

	// TerminateAfter terminates the workflow under test after the given delay in workflow time.
	TerminateAfter(delay time.Duration, reason string)

	// WorkflowFinished returns true if the workflow under test is finished.
	WorkflowFinished() bool

	// WorkflowStatus returns the status of the workflow under test.
	WorkflowStatus() core.WorkflowInstanceStatus

	// WorkflowResult returns the result of the workflow under test. If the workflow is not finished yet, this will
	// error.
	WorkflowResult() (TResult, error)

	// History returns the recorded history of the workflow under test.
	History() []*history.Event

	// AssertExpectations asserts any assertions set up for mock activities
	AssertExpectations(t *testing.T)
}

var _ WorkflowTester[any] = (*workflowTester[any])(nil)

// workflowTester runs a single workflow instance against an in-memory history. Every workflow task
// is executed by a fresh executor replaying the full history, the same way workers do it. Activities
// run inline and timers fire by advancing the simulated clock to their due time.
type workflowTester[TResult any] struct {
	// Workflow under test
	wf  any
	wfi *core.WorkflowInstance

	registry *registry.Registry

	ma               *mock.Mock
	mockedActivities map[string]bool

	history       []*history.Event
	pendingEvents []*history.Event

	status         core.WorkflowInstanceStatus
	workflowResult payload.Payload
	workflowErr    *workflowerrors.Error

	clock  *clock.Mock
	timers []*testTimer

	logger    *slog.Logger
	tracer    trace.Tracer
	converter converter.Converter
}

func NewWorkflowTester[TResult any](wf workflow.Workflow, opts ...WorkflowTesterOption) *workflowTester[TResult] {
	if err := args.ReturnTypeMatch[TResult](wf); err != nil {
		panic(fmt.Sprintf("workflow return type does not match: %s", err))
	}

	options := &options{
		StartTime: time.Now(),
		Logger:    slog.Default(),
		Converter: converter.DefaultConverter,
	}

	for _, o := range opts {
		o(options)
	}

	c := clock.NewMock()
	c.Set(options.StartTime)

	wt := &workflowTester[TResult]{
		wf:       wf,
		wfi:      core.NewWorkflowInstance(uuid.NewString(), uuid.NewString()),
		registry: registry.New(),

		ma:               &mock.Mock{},
		mockedActivities: make(map[string]bool),

		history: make([]*history.Event, 0),
		status:  core.WorkflowInstanceStatusRunning,

		clock:  c,
		timers: make([]*testTimer, 0),

		logger:    options.Logger.With("source", "tester"),
		tracer:    noop.NewTracerProvider().Tracer("workflow-tester"),
		converter: options.Converter,
	}

	// Always register the workflow under test
	if err := wt.registry.RegisterWorkflow(wf); err != nil {
		panic(fmt.Sprintf("could not register workflow under test: %v", err))
	}

	return wt
}

// Now returns the current time in the workflow tester's clock
func (wt *workflowTester[TResult]) Now() time.Time {
	return wt.clock.Now()
}

// Registry returns the registry used by the workflow tester.
func (wt *workflowTester[TResult]) Registry() *registry.Registry {
	return wt.registry
}

// ScheduleCallback schedules a callback to be called after the given delay.
func (wt *workflowTester[TResult]) ScheduleCallback(delay time.Duration, callback func()) {
	wt.addTimer(&testTimer{
		At:       wt.clock.Now().Add(delay),
		Callback: callback,
	})
}

// TerminateAfter delivers a termination to the workflow under test once the given delay has passed.
func (wt *workflowTester[TResult]) TerminateAfter(delay time.Duration, reason string) {
	at := wt.clock.Now().Add(delay)

	wt.addTimer(&testTimer{
		At: at,
		Event: history.NewPendingEvent(
			at,
			history.EventType_WorkflowExecutionTerminated,
			&history.ExecutionTerminatedAttributes{Reason: reason},
		),
	})
}

// OnActivityByName registers a mock activity with the given name.
func (wt *workflowTester[TResult]) OnActivityByName(name string, activity workflow.Activity, args ...any) *mock.Call {
	// Register activity so that we can correctly identify its arguments later
	wt.registerActivity(activity, registry.WithName(name))

	wt.mockedActivities[name] = true
	return wt.ma.On(name, args...)
}

// OnActivity registers a mock activity.
func (wt *workflowTester[TResult]) OnActivity(activity workflow.Activity, args ...any) *mock.Call {
	// Register activity so that we can correctly identify its arguments later
	wt.registerActivity(activity)

	name := fn.Name(activity)
	wt.mockedActivities[name] = true
	return wt.ma.On(name, args...)
}

func (wt *workflowTester[TResult]) registerActivity(activity workflow.Activity, opts ...registry.RegisterOption) {
	err := wt.registry.RegisterActivity(activity, opts...)

	var already *registry.ErrActivityAlreadyRegistered
	if err != nil && !errors.As(err, &already) {
		panic(fmt.Sprintf("could not register mocked activity: %v", err))
	}
}

// Execute executes the workflow under test with the given arguments.
func (wt *workflowTester[TResult]) Execute(ctx context.Context, args ...any) {
	wt.pendingEvents = append(wt.pendingEvents, wt.getInitialEvent(wt.wf, args))

	for !wt.status.Terminal() {
		if len(wt.pendingEvents) > 0 {
			wt.executeTask(ctx)
			continue
		}

		if len(wt.timers) == 0 {
			panic("No new events generated during workflow execution and no pending timers, workflow blocked?")
		}

		// Pop first timer, advance the workflow clock and fire it
		t := wt.timers[0]
		wt.timers = wt.timers[1:]

		wt.logger.Debug("Advancing workflow clock to fire timer", log.AtKey, t.At)

		if t.At.After(wt.clock.Now()) {
			wt.clock.Set(t.At)
		}

		if event := t.fire(); event != nil {
			wt.pendingEvents = append(wt.pendingEvents, event)
		}
	}
}

func (wt *workflowTester[TResult]) executeTask(ctx context.Context) {
	t := getNextWorkflowTask(wt.wfi, wt.history, wt.pendingEvents)
	wt.pendingEvents = nil

	e, err := executor.NewExecutor(wt.logger, wt.tracer, wt.registry, wt.converter, &testHistoryProvider{wt.history}, wt.wfi, wt.clock)
	if err != nil {
		panic(fmt.Errorf("could not create workflow executor: %v", err))
	}

	result, err := e.ExecuteTask(ctx, t)
	if err != nil {
		panic("Error while executing workflow: " + err.Error())
	}

	e.Close()

	// Add all executed events to history
	wt.history = append(wt.history, result.Executed...)
	wt.status = result.Status

	for _, event := range result.Executed {
		wt.logger.Debug("Event", log.EventTypeKey, event.Type)

		if event.Type == history.EventType_WorkflowExecutionFinished {
			a := event.Attributes.(*history.ExecutionFinishedAttributes)
			wt.workflowResult = a.Result
			wt.workflowErr = a.Error
		}
	}

	if wt.status.Terminal() {
		return
	}

	for _, event := range result.ActivityEvents {
		a := event.Attributes.(*history.ActivityScheduledAttributes)
		wt.logger.Debug("Activity event", log.ActivityNameKey, a.Name, log.AttemptKey, a.Attempt)

		wt.pendingEvents = append(wt.pendingEvents, wt.executeActivity(event))
	}

	for _, timerEvent := range result.TimerEvents {
		wt.logger.Debug("Timer future event", log.EventTypeKey, timerEvent.Type, log.AtKey, *timerEvent.VisibleAt)

		wt.addTimer(&testTimer{
			At:    *timerEvent.VisibleAt,
			Event: timerEvent,
		})
	}
}

// WorkflowFinished returns true if the workflow under test has finished.
func (wt *workflowTester[TResult]) WorkflowFinished() bool {
	return wt.status.Terminal()
}

func (wt *workflowTester[TResult]) WorkflowStatus() core.WorkflowInstanceStatus {
	return wt.status
}

// WorkflowResult returns the result of the workflow under test.
func (wt *workflowTester[TResult]) WorkflowResult() (TResult, error) {
	var r TResult

	if !wt.status.Terminal() {
		return r, errors.New("workflow not finished")
	}

	if wt.workflowResult != nil {
		if err := wt.converter.From(wt.workflowResult, &r); err != nil {
			panic("could not convert workflow result to expected type: " + err.Error())
		}
	}

	if wt.status == core.WorkflowInstanceStatusTerminated {
		return r, errors.New("workflow terminated")
	}

	return r, workflowerrors.ToError(wt.workflowErr)
}

func (wt *workflowTester[TResult]) History() []*history.Event {
	return wt.history
}

// AssertExpectations asserts that all expected activities were executed.
func (wt *workflowTester[TResult]) AssertExpectations(t *testing.T) {
	wt.ma.AssertExpectations(t)
}

func (wt *workflowTester[TResult]) executeActivity(event *history.Event) *history.Event {
	e := event.Attributes.(*history.ActivityScheduledAttributes)

	var activityErr error
	var activityResult payload.Payload

	// If an activity is mocked once, we'll never fall back to the original implementation
	if wt.mockedActivities[e.Name] {
		activityResult, activityErr = wt.callMockedActivity(e)
	} else {
		executor := activity.NewExecutor(wt.logger, wt.tracer, wt.converter, wt.registry)
		activityResult, activityErr = executor.ExecuteActivity(context.Background(), &backend.ActivityTask{
			ID:               uuid.NewString(),
			WorkflowInstance: wt.wfi,
			Event:            event,
		})
	}

	if activityErr != nil {
		return history.NewPendingEvent(
			wt.clock.Now(),
			history.EventType_ActivityFailed,
			&history.ActivityFailedAttributes{
				Error: workflowerrors.FromError(activityErr),
			},
			history.ScheduleEventID(event.ScheduleEventID),
		)
	}

	return history.NewPendingEvent(
		wt.clock.Now(),
		history.EventType_ActivityCompleted,
		&history.ActivityCompletedAttributes{
			Result: activityResult,
		},
		history.ScheduleEventID(event.ScheduleEventID),
	)
}

func (wt *workflowTester[TResult]) callMockedActivity(e *history.ActivityScheduledAttributes) (payload.Payload, error) {
	afn, err := wt.registry.GetActivity(e.Name)
	if err != nil {
		panic("Could not find activity " + e.Name + " in registry")
	}

	argValues, addContext, err := args.InputsToArgs(wt.converter, reflect.ValueOf(afn), e.Inputs)
	if err != nil {
		panic("Could not convert activity inputs to args: " + err.Error())
	}

	args := make([]any, len(argValues))
	for i, arg := range argValues {
		if i == 0 && addContext {
			args[i] = context.Background()
			continue
		}

		args[i] = arg.Interface()
	}

	results := wt.ma.MethodCalled(e.Name, args...)

	switch len(results) {
	case 1:
		// Expect only error
		return nil, results.Error(0)

	case 2:
		result, err := wt.converter.To(results.Get(0))
		if err != nil {
			panic("Could not convert result for activity " + e.Name + ": " + err.Error())
		}

		return result, results.Error(1)

	default:
		panic(
			fmt.Sprintf(
				"Unexpected number of results returned for mocked activity %v, expected 1 or 2, got %v",
				e.Name,
				len(results),
			),
		)
	}
}

func (wt *workflowTester[TResult]) addTimer(t *testTimer) {
	wt.timers = append(wt.timers, t)

	sort.SliceStable(wt.timers, func(i, j int) bool {
		return wt.timers[i].At.Before(wt.timers[j].At)
	})
}

func (wt *workflowTester[TResult]) getInitialEvent(wf any, a []any) *history.Event {
	name := fn.Name(wf)

	inputs, err := args.ArgsToInputs(wt.converter, a...)
	if err != nil {
		panic(err)
	}

	return history.NewPendingEvent(
		wt.clock.Now(),
		history.EventType_WorkflowExecutionStarted,
		&history.ExecutionStartedAttributes{
			Name:   name,
			Inputs: inputs,
		},
	)
}

func getNextWorkflowTask(wfi *core.WorkflowInstance, h []*history.Event, newEvents []*history.Event) *backend.WorkflowTask {
	var lastSequenceID int64
	if len(h) > 0 {
		lastSequenceID = h[len(h)-1].SequenceID
	}

	return &backend.WorkflowTask{
		ID:                     uuid.NewString(),
		WorkflowInstance:       wfi,
		WorkflowInstanceStatus: core.WorkflowInstanceStatusRunning,
		LastSequenceID:         lastSequenceID,
		NewEvents:              newEvents,
	}
}
