package history

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/voxflow/go-transcribe/backend/payload"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/internal/workflowerrors"
)

func TestRoundtripJSON(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)

	events := []*Event{
		NewHistoryEvent(1, now, EventType_WorkflowExecutionStarted, &ExecutionStartedAttributes{
			Name:   "Transcribe",
			Inputs: []payload.Payload{payload.Payload(`"https://blob/audio.wav"`)},
		}),
		NewHistoryEvent(2, now, EventType_ActivityFailed, &ActivityFailedAttributes{
			Error: workflowerrors.New(workflowerrors.KindJobFailed, "job failed", true),
		}, ScheduleEventID(1)),
		NewHistoryEvent(3, now, EventType_TimerFired, &TimerFiredAttributes{
			ScheduledAt: now,
			At:          now.Add(5 * time.Second),
		}, ScheduleEventID(2), VisibleAt(now.Add(5*time.Second))),
		NewHistoryEvent(4, now, EventType_WorkflowExecutionFinished, &ExecutionFinishedAttributes{
			Status: core.WorkflowInstanceStatusTimedOut,
		}),
	}

	for _, event := range events {
		b, err := json.Marshal(event)
		require.NoError(t, err)

		var event2 Event
		require.NoError(t, json.Unmarshal(b, &event2))

		require.Equal(t, event.ID, event2.ID)
		require.Equal(t, event.SequenceID, event2.SequenceID)
		require.Equal(t, event.Type, event2.Type)
		require.Equal(t, event.ScheduleEventID, event2.ScheduleEventID)
		require.Equal(t, event.VisibleAt, event2.VisibleAt)
		require.Equal(t, event.Attributes, event2.Attributes)
	}
}
