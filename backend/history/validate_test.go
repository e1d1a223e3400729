package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testHistory(types ...EventType) []*Event {
	now := time.Now()
	events := make([]*Event, 0, len(types))

	scheduleEventID := int64(0)
	for i, et := range types {
		if et.Scheduling() {
			scheduleEventID++
		}

		var opts []HistoryEventOption
		if et.Scheduling() || et.Completing() {
			opts = append(opts, ScheduleEventID(scheduleEventID))
		}

		events = append(events, NewHistoryEvent(int64(i+1), now, et, nil, opts...))
	}

	return events
}

func Test_Validate(t *testing.T) {
	tests := []struct {
		name   string
		events func() []*Event
		reason string
	}{
		{
			name: "valid",
			events: func() []*Event {
				return testHistory(
					EventType_WorkflowTaskStarted,
					EventType_WorkflowExecutionStarted,
					EventType_ActivityScheduled,
					EventType_ActivityCompleted,
					EventType_WorkflowTaskStarted,
					EventType_TimerScheduled,
					EventType_TimerFired,
					EventType_WorkflowExecutionFinished,
				)
			},
		},
		{
			name: "gap in sequence ids",
			events: func() []*Event {
				h := testHistory(EventType_WorkflowExecutionStarted, EventType_WorkflowTaskStarted)
				h[1].SequenceID = 3
				return h
			},
			reason: "expected sequence id 2",
		},
		{
			name: "missing started event",
			events: func() []*Event {
				return testHistory(EventType_WorkflowTaskStarted, EventType_TimerScheduled)
			},
			reason: "does not start with",
		},
		{
			name: "started twice",
			events: func() []*Event {
				return testHistory(
					EventType_WorkflowTaskStarted,
					EventType_WorkflowExecutionStarted,
					EventType_WorkflowExecutionStarted,
				)
			},
			reason: "started more than once",
		},
		{
			name: "event after termination",
			events: func() []*Event {
				return testHistory(
					EventType_WorkflowExecutionStarted,
					EventType_WorkflowExecutionTerminated,
					EventType_ActivityScheduled,
				)
			},
			reason: "after workflow finished",
		},
		{
			name: "duplicate schedule",
			events: func() []*Event {
				h := testHistory(EventType_WorkflowExecutionStarted, EventType_ActivityScheduled, EventType_ActivityScheduled)
				h[2].ScheduleEventID = 1
				return h
			},
			reason: "scheduled more than once",
		},
		{
			name: "completion without schedule",
			events: func() []*Event {
				h := testHistory(EventType_WorkflowExecutionStarted, EventType_ActivityCompleted)
				h[1].ScheduleEventID = 7
				return h
			},
			reason: "without matching scheduling event",
		},
		{
			name: "duplicate completion",
			events: func() []*Event {
				return testHistory(
					EventType_WorkflowExecutionStarted,
					EventType_ActivityScheduled,
					EventType_ActivityCompleted,
					EventType_ActivityFailed,
				)
			},
			reason: "completed more than once",
		},
		{
			name: "timer fired for activity",
			events: func() []*Event {
				return testHistory(
					EventType_WorkflowExecutionStarted,
					EventType_ActivityScheduled,
					EventType_TimerFired,
				)
			},
			reason: "does not match scheduled",
		},
		{
			name: "event after finish",
			events: func() []*Event {
				return testHistory(
					EventType_WorkflowExecutionStarted,
					EventType_WorkflowExecutionFinished,
					EventType_WorkflowTaskStarted,
				)
			},
			reason: "after workflow finished",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.events())
			if tt.reason == "" {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, ErrCorrupted)

			var cerr *CorruptionError
			require.ErrorAs(t, err, &cerr)
			require.Contains(t, cerr.Reason, tt.reason)
		})
	}
}
