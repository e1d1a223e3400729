package workflowstate

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/internal/command"
	"github.com/voxflow/go-transcribe/internal/log"
	"github.com/voxflow/go-transcribe/internal/sync"
	"github.com/voxflow/go-transcribe/internal/tracing"
)

type key int

var workflowCtxKey key

// WfState is the state of one workflow execution while its history is replayed and
// new events are applied.
type WfState struct {
	instance        *core.WorkflowInstance
	scheduleEventID int64
	commands        []command.Command
	pendingFutures  map[int64]DecodingSettable
	replaying       bool

	logger *slog.Logger
	tracer *tracing.WorkflowTracer

	clock clock.Clock
	time  time.Time
}

func NewWorkflowState(instance *core.WorkflowInstance, logger *slog.Logger, tracer *tracing.WorkflowTracer, clock clock.Clock) *WfState {
	state := &WfState{
		instance:        instance,
		commands:        []command.Command{},
		scheduleEventID: 1,
		pendingFutures:  map[int64]DecodingSettable{},
		tracer:          tracer,
		clock:           clock,
	}

	state.logger = NewReplayLogger(
		state,
		logger.With(
			log.InstanceIDKey, instance.InstanceID,
			log.ExecutionIDKey, instance.ExecutionID,
		))

	return state
}

func WorkflowState(ctx sync.Context) *WfState {
	return ctx.Value(workflowCtxKey).(*WfState)
}

func WithWorkflowState(ctx sync.Context, wfState *WfState) sync.Context {
	return sync.WithValue(ctx, workflowCtxKey, wfState)
}

// GetNextScheduleEventID returns the next sequence number for a scheduling decision. Sequence
// numbers are assigned in decision order, so a deterministic workflow gets the same numbers on
// every replay.
func (wf *WfState) GetNextScheduleEventID() int64 {
	scheduleEventID := wf.scheduleEventID
	wf.scheduleEventID++
	return scheduleEventID
}

func (wf *WfState) TrackFuture(scheduleEventID int64, f DecodingSettable) {
	wf.pendingFutures[scheduleEventID] = f
}

func (wf *WfState) FutureByScheduleEventID(scheduleEventID int64) (DecodingSettable, bool) {
	f, ok := wf.pendingFutures[scheduleEventID]
	return f, ok
}

func (wf *WfState) RemoveFuture(scheduleEventID int64) {
	delete(wf.pendingFutures, scheduleEventID)
}

func (wf *WfState) HasPendingFutures() bool {
	return len(wf.pendingFutures) > 0
}

func (wf *WfState) PendingFutureNames() map[int64]string {
	names := make(map[int64]string, len(wf.pendingFutures))
	for id, f := range wf.pendingFutures {
		names[id] = f.Name()
	}

	return names
}

func (wf *WfState) Commands() []command.Command {
	return wf.commands
}

func (wf *WfState) AddCommand(cmd command.Command) {
	wf.commands = append(wf.commands, cmd)
}

func (wf *WfState) CommandByScheduleEventID(scheduleEventID int64) command.Command {
	for _, c := range wf.commands {
		if c.ID() == scheduleEventID {
			return c
		}
	}

	return nil
}

func (wf *WfState) SetReplaying(replaying bool) {
	wf.replaying = replaying
}

func (wf *WfState) Replaying() bool {
	return wf.replaying
}

// SetTime sets the logical time of the workflow. It is only ever advanced by recorded events.
func (wf *WfState) SetTime(t time.Time) {
	wf.time = t
}

func (wf *WfState) Time() time.Time {
	return wf.time
}

func (wf *WfState) Instance() *core.WorkflowInstance {
	return wf.instance
}

func (wf *WfState) Logger() *slog.Logger {
	return wf.logger
}

func (wf *WfState) Tracer() *tracing.WorkflowTracer {
	return wf.tracer
}

func (wf *WfState) Clock() clock.Clock {
	return wf.clock
}
