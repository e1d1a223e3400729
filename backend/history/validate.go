package history

import (
	"errors"
	"fmt"
)

var ErrCorrupted = errors.New("history corrupted")

// CorruptionError describes the first inconsistency found in a history.
type CorruptionError struct {
	SequenceID      int64
	ScheduleEventID int64
	EventType       EventType
	Reason          string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("history corrupted at sequence id %d (%v, schedule event id %d): %s",
		e.SequenceID, e.EventType, e.ScheduleEventID, e.Reason)
}

func (e *CorruptionError) Unwrap() error {
	return ErrCorrupted
}

var completionOf = map[EventType]EventType{
	EventType_ActivityCompleted: EventType_ActivityScheduled,
	EventType_ActivityFailed:    EventType_ActivityScheduled,
	EventType_TimerFired:        EventType_TimerScheduled,
}

// Validate checks that the given events form a consistent history. Sequence ids have to be
// gap-free and only the task started event may precede the workflow started event. Every
// action is scheduled at most once and completed at most once after it was scheduled.
// Nothing may follow the finished or terminated event.
func Validate(events []*Event) error {
	scheduled := make(map[int64]EventType)
	completed := make(map[int64]bool)
	started, finished := false, false

	for i, e := range events {
		corrupted := func(reason string, args ...any) error {
			return &CorruptionError{
				SequenceID:      e.SequenceID,
				ScheduleEventID: e.ScheduleEventID,
				EventType:       e.Type,
				Reason:          fmt.Sprintf(reason, args...),
			}
		}

		if i > 0 && e.SequenceID != events[i-1].SequenceID+1 {
			return corrupted("expected sequence id %d", events[i-1].SequenceID+1)
		}

		if !started && e.Type != EventType_WorkflowExecutionStarted && e.Type != EventType_WorkflowTaskStarted {
			return corrupted("history does not start with %v", EventType_WorkflowExecutionStarted)
		}

		if finished {
			return corrupted("event recorded after workflow finished")
		}

		switch {
		case e.Type == EventType_WorkflowExecutionStarted:
			if started {
				return corrupted("workflow started more than once")
			}

			started = true

		case e.Type.Scheduling():
			if _, ok := scheduled[e.ScheduleEventID]; ok {
				return corrupted("action scheduled more than once")
			}

			scheduled[e.ScheduleEventID] = e.Type

		case e.Type.Completing():
			st, ok := scheduled[e.ScheduleEventID]
			if !ok {
				return corrupted("completion without matching scheduling event")
			}

			if st != completionOf[e.Type] {
				return corrupted("completion does not match scheduled %v", st)
			}

			if completed[e.ScheduleEventID] {
				return corrupted("action completed more than once")
			}

			completed[e.ScheduleEventID] = true

		case e.Type == EventType_WorkflowExecutionFinished || e.Type == EventType_WorkflowExecutionTerminated:
			finished = true
		}
	}

	return nil
}
