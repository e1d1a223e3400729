package test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/core"
)

// BackendTest runs the conformance tests every history store has to pass.
func BackendTest(t *testing.T, setup func(options ...backend.BackendOption) TestBackend, teardown func(b TestBackend)) {
	tests := []struct {
		name string
		f    func(t *testing.T, ctx context.Context, b TestBackend)
	}{
		{
			name: "GetWorkflowTask_ReturnsNilWhenNoTask",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				task, err := b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.Nil(t, task)
			},
		},
		{
			name: "GetActivityTask_ReturnsNilWhenNoTask",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				task, err := b.GetActivityTask(ctx)
				require.NoError(t, err)
				require.Nil(t, task)
			},
		},
		{
			name: "CreateWorkflowInstance_DoesNotError",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				wfi := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString())

				err := b.CreateWorkflowInstance(ctx, wfi, startedEvent())
				require.NoError(t, err)

				s, err := b.GetWorkflowInstanceStatus(ctx, wfi)
				require.NoError(t, err)
				require.Equal(t, core.WorkflowInstanceStatusRunning, s)
			},
		},
		{
			name: "CreateWorkflowInstance_SameInstanceIDErrors",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				instanceID := uuid.NewString()

				err := b.CreateWorkflowInstance(ctx, core.NewWorkflowInstance(instanceID, uuid.NewString()), startedEvent())
				require.NoError(t, err)

				err = b.CreateWorkflowInstance(ctx, core.NewWorkflowInstance(instanceID, uuid.NewString()), startedEvent())
				require.ErrorIs(t, err, backend.ErrInstanceAlreadyExists)
			},
		},
		{
			name: "GetWorkflowInstanceStatus_NotFound",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				_, err := b.GetWorkflowInstanceStatus(ctx, core.NewWorkflowInstance(uuid.NewString(), uuid.NewString()))
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)
			},
		},
		{
			name: "GetWorkflowTask_ReturnsTask",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				wfi := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString())
				started := startedEvent()
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, started))

				task, err := b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.NotNil(t, task)
				require.Equal(t, wfi.InstanceID, task.WorkflowInstance.InstanceID)
				require.Equal(t, core.WorkflowInstanceStatusRunning, task.WorkflowInstanceStatus)
				require.Equal(t, int64(0), task.LastSequenceID)
				require.Len(t, task.NewEvents, 1)
				require.Equal(t, started.ID, task.NewEvents[0].ID)
				require.Equal(t, history.EventType_WorkflowExecutionStarted, task.NewEvents[0].Type)
			},
		},
		{
			name: "GetWorkflowTask_LocksTask",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				wfi := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString())
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent()))

				// Get and lock only task
				task, err := b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.NotNil(t, task)

				// First task is locked, second call should return nil
				task, err = b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.Nil(t, task)
			},
		},
		{
			name: "ExtendWorkflowTask_ReturnsErrorIfNotLocked",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				wfi := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString())
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent()))

				err := b.ExtendWorkflowTask(ctx, &backend.WorkflowTask{ID: uuid.NewString(), WorkflowInstance: wfi})
				require.ErrorIs(t, err, backend.ErrTaskNotFound)
			},
		},
		{
			name: "CompleteWorkflowTask_ReturnsErrorIfNotLocked",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				wfi := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString())
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent()))

				err := b.CompleteWorkflowTask(ctx, &backend.WorkflowTask{
					ID:               uuid.NewString(),
					WorkflowInstance: wfi,
				}, core.WorkflowInstanceStatusRunning, nil, nil, nil)
				require.ErrorIs(t, err, backend.ErrTaskNotFound)
			},
		},
		{
			name: "CompleteWorkflowTask_AddsNewEventsToHistory",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				wfi := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString())
				started := startedEvent()
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, started))

				task, err := b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.NotNil(t, task)

				activityScheduled := history.NewPendingEvent(time.Now(), history.EventType_ActivityScheduled,
					&history.ActivityScheduledAttributes{Name: "StartJob", Attempt: 1}, history.ScheduleEventID(1))

				executed := firstTaskEvents(task, activityScheduled)

				err = b.CompleteWorkflowTask(ctx, task, core.WorkflowInstanceStatusRunning, executed, []*history.Event{activityScheduled}, nil)
				require.NoError(t, err)

				h, err := b.GetWorkflowInstanceHistory(ctx, wfi, nil)
				require.NoError(t, err)
				require.Len(t, h, len(executed))
				for i, expected := range executed {
					require.Equal(t, expected.Type, h[i].Type)
					require.Equal(t, int64(i+1), h[i].SequenceID)
				}

				// Only the suffix after the given sequence id
				lastSequenceID := int64(2)
				h, err = b.GetWorkflowInstanceHistory(ctx, wfi, &lastSequenceID)
				require.NoError(t, err)
				require.Len(t, h, 1)
				require.Equal(t, history.EventType_ActivityScheduled, h[0].Type)

				// Started event was consumed, no new workflow task until the activity completes
				wtask, err := b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.Nil(t, wtask)

				atask, err := b.GetActivityTask(ctx)
				require.NoError(t, err)
				require.NotNil(t, atask)
				require.Equal(t, activityScheduled.ID, atask.Event.ID)
				require.Equal(t, wfi.InstanceID, atask.WorkflowInstance.InstanceID)

				a := atask.Event.Attributes.(*history.ActivityScheduledAttributes)
				require.Equal(t, "StartJob", a.Name)
				require.Equal(t, 1, a.Attempt)

				completed := history.NewPendingEvent(time.Now(), history.EventType_ActivityCompleted,
					&history.ActivityCompletedAttributes{}, history.ScheduleEventID(1))
				require.NoError(t, b.CompleteActivityTask(ctx, atask, completed))

				// Completing twice fails, the activity is gone
				require.ErrorIs(t, b.CompleteActivityTask(ctx, atask, completed), backend.ErrTaskNotFound)

				wtask, err = b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.NotNil(t, wtask)
				require.Equal(t, int64(3), wtask.LastSequenceID)
				require.Len(t, wtask.NewEvents, 1)
				require.Equal(t, completed.ID, wtask.NewEvents[0].ID)
				require.Equal(t, history.EventType_ActivityCompleted, wtask.NewEvents[0].Type)
			},
		},
		{
			name: "CompleteWorkflowTask_SequenceConflict",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				wfi := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString())
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent()))

				task, err := b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.NotNil(t, task)

				// Task claims a history that does not exist
				task.LastSequenceID = 5

				err = b.CompleteWorkflowTask(ctx, task, core.WorkflowInstanceStatusRunning, firstTaskEvents(task), nil, nil)
				require.ErrorIs(t, err, backend.ErrSequenceConflict)

				h, err := b.GetWorkflowInstanceHistory(ctx, wfi, nil)
				require.NoError(t, err)
				require.Empty(t, h)
			},
		},
		{
			name: "CompleteWorkflowTask_FinishesInstance",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				wfi := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString())
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent()))

				task, err := b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.NotNil(t, task)

				finished := history.NewPendingEvent(time.Now(), history.EventType_WorkflowExecutionFinished,
					&history.ExecutionFinishedAttributes{Status: core.WorkflowInstanceStatusCompleted})

				err = b.CompleteWorkflowTask(ctx, task, core.WorkflowInstanceStatusCompleted, firstTaskEvents(task, finished), nil, nil)
				require.NoError(t, err)

				s, err := b.GetWorkflowInstanceStatus(ctx, wfi)
				require.NoError(t, err)
				require.Equal(t, core.WorkflowInstanceStatusCompleted, s)

				err = b.TerminateWorkflowInstance(ctx, wfi, terminatedEvent())
				require.ErrorIs(t, err, backend.ErrInstanceFinished)
			},
		},
		{
			name: "CompleteWorkflowTask_RejectsInvalidTransition",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				wfi := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString())
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent()))

				task, err := b.GetWorkflowTask(ctx)
				require.NoError(t, err)

				activityScheduled := history.NewPendingEvent(time.Now(), history.EventType_ActivityScheduled,
					&history.ActivityScheduledAttributes{Name: "PollStatus", Attempt: 1}, history.ScheduleEventID(1))
				finished := history.NewPendingEvent(time.Now(), history.EventType_WorkflowExecutionFinished,
					&history.ExecutionFinishedAttributes{Status: core.WorkflowInstanceStatusFailed})
				require.NoError(t, b.CompleteWorkflowTask(ctx, task, core.WorkflowInstanceStatusFailed,
					firstTaskEvents(task, activityScheduled, finished), []*history.Event{activityScheduled}, nil))

				// A late activity result creates another task for the finished instance
				atask, err := b.GetActivityTask(ctx)
				require.NoError(t, err)
				require.NotNil(t, atask)

				late := history.NewPendingEvent(time.Now(), history.EventType_ActivityCompleted, &history.ActivityCompletedAttributes{}, history.ScheduleEventID(1))
				require.NoError(t, b.CompleteActivityTask(ctx, atask, late))

				task, err = b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.NotNil(t, task)
				require.Equal(t, core.WorkflowInstanceStatusFailed, task.WorkflowInstanceStatus)

				err = b.CompleteWorkflowTask(ctx, task, core.WorkflowInstanceStatusCompleted, nil, nil, nil)
				require.ErrorIs(t, err, core.ErrInvalidStatusTransition)

				// Keeping the status discards the late event
				require.NoError(t, b.CompleteWorkflowTask(ctx, task, core.WorkflowInstanceStatusFailed, nil, nil, nil))

				task, err = b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.Nil(t, task)
			},
		},
		{
			name: "CompleteWorkflowTask_TimersBecomeVisible",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				wfi := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString())
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent()))

				task, err := b.GetWorkflowTask(ctx)
				require.NoError(t, err)

				now := time.Now()
				at := now.Add(time.Hour)
				timerScheduled := history.NewPendingEvent(now, history.EventType_TimerScheduled,
					&history.TimerScheduledAttributes{At: at}, history.ScheduleEventID(1))
				timerFired := history.NewPendingEvent(now, history.EventType_TimerFired,
					&history.TimerFiredAttributes{ScheduledAt: now, At: at}, history.ScheduleEventID(1), history.VisibleAt(at))

				err = b.CompleteWorkflowTask(ctx, task, core.WorkflowInstanceStatusRunning,
					firstTaskEvents(task, timerScheduled), nil, []*history.Event{timerFired})
				require.NoError(t, err)

				// Timer has not fired yet
				task, err = b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.Nil(t, task)

				futureEvents, err := b.GetFutureEvents(ctx)
				require.NoError(t, err)
				require.Len(t, futureEvents, 1)
				require.Equal(t, timerFired.ID, futureEvents[0].ID)
				require.NotNil(t, futureEvents[0].VisibleAt)
				require.WithinDuration(t, at, *futureEvents[0].VisibleAt, time.Second)
			},
		},
		{
			name: "TerminateWorkflowInstance_NotFound",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				err := b.TerminateWorkflowInstance(ctx, core.NewWorkflowInstance(uuid.NewString(), uuid.NewString()), terminatedEvent())
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)
			},
		},
		{
			name: "TerminateWorkflowInstance_AddsPendingEvent",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				wfi := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString())
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent()))
				require.NoError(t, b.TerminateWorkflowInstance(ctx, wfi, terminatedEvent()))

				task, err := b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.NotNil(t, task)
				require.Len(t, task.NewEvents, 2)
				require.Equal(t, history.EventType_WorkflowExecutionStarted, task.NewEvents[0].Type)
				require.Equal(t, history.EventType_WorkflowExecutionTerminated, task.NewEvents[1].Type)
			},
		},
		{
			name: "RemoveWorkflowInstance_NotFinished",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				wfi := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString())
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent()))

				err := b.RemoveWorkflowInstance(ctx, wfi)
				require.ErrorIs(t, err, backend.ErrInstanceNotFinished)
			},
		},
		{
			name: "RemoveWorkflowInstance_RemovesFinished",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				wfi := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString())
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent()))

				task, err := b.GetWorkflowTask(ctx)
				require.NoError(t, err)

				finished := history.NewPendingEvent(time.Now(), history.EventType_WorkflowExecutionFinished,
					&history.ExecutionFinishedAttributes{Status: core.WorkflowInstanceStatusCompleted})
				require.NoError(t, b.CompleteWorkflowTask(ctx, task, core.WorkflowInstanceStatusCompleted, firstTaskEvents(task, finished), nil, nil))

				require.NoError(t, b.RemoveWorkflowInstance(ctx, wfi))

				_, err = b.GetWorkflowInstanceStatus(ctx, wfi)
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)

				_, err = b.GetWorkflowInstanceHistory(ctx, wfi, nil)
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setup()
			ctx := context.Background()

			tt.f(t, ctx, b)

			if teardown != nil {
				teardown(b)
			}
		})
	}
}

func startedEvent() *history.Event {
	return history.NewPendingEvent(time.Now(), history.EventType_WorkflowExecutionStarted, &history.ExecutionStartedAttributes{Name: "Transcribe"})
}

func terminatedEvent() *history.Event {
	return history.NewPendingEvent(time.Now(), history.EventType_WorkflowExecutionTerminated, &history.ExecutionTerminatedAttributes{Reason: "test"})
}

// firstTaskEvents builds the events a worker records for the first task of an instance: a task
// started event, the consumed started event, and the given new events, numbered in order.
func firstTaskEvents(task *backend.WorkflowTask, events ...*history.Event) []*history.Event {
	executed := []*history.Event{
		history.NewPendingEvent(time.Now(), history.EventType_WorkflowTaskStarted, &history.WorkflowTaskStartedAttributes{}),
	}
	executed = append(executed, task.NewEvents...)
	executed = append(executed, events...)

	for i, e := range executed {
		e.SequenceID = task.LastSequenceID + int64(i) + 1
	}

	return executed
}
