package history

import (
	"time"

	"github.com/google/uuid"
)

type EventType uint

const (
	_ EventType = iota

	EventType_WorkflowExecutionStarted
	EventType_WorkflowExecutionFinished
	EventType_WorkflowExecutionTerminated

	EventType_WorkflowTaskStarted

	EventType_ActivityScheduled
	EventType_ActivityCompleted
	EventType_ActivityFailed

	EventType_TimerScheduled
	EventType_TimerFired
)

func (et EventType) String() string {
	switch et {
	case EventType_WorkflowExecutionStarted:
		return "WorkflowExecutionStarted"
	case EventType_WorkflowExecutionFinished:
		return "WorkflowExecutionFinished"
	case EventType_WorkflowExecutionTerminated:
		return "WorkflowExecutionTerminated"

	case EventType_WorkflowTaskStarted:
		return "WorkflowTaskStarted"

	case EventType_ActivityScheduled:
		return "ActivityScheduled"
	case EventType_ActivityCompleted:
		return "ActivityCompleted"
	case EventType_ActivityFailed:
		return "ActivityFailed"

	case EventType_TimerScheduled:
		return "TimerScheduled"
	case EventType_TimerFired:
		return "TimerFired"

	default:
		return "Unknown"
	}
}

// Scheduling returns true for events that start an action which is later completed by
// an event with the same ScheduleEventID.
func (et EventType) Scheduling() bool {
	return et == EventType_ActivityScheduled || et == EventType_TimerScheduled
}

// Completing returns true for events that complete an earlier scheduled action.
func (et EventType) Completing() bool {
	return et == EventType_ActivityCompleted || et == EventType_ActivityFailed || et == EventType_TimerFired
}

type Event struct {
	// ID is a unique identifier for this event
	ID string `json:"id,omitempty"`

	// SequenceID is the position of the event in the instance history, starting at 1.
	// Events not yet added to a history have a SequenceID of 0.
	SequenceID int64 `json:"sid,omitempty"`

	Type EventType `json:"t,omitempty"`

	Timestamp time.Time `json:"ts,omitempty"`

	// ScheduleEventID correlates events belonging together. An activity or timer
	// is scheduled with a new ScheduleEventID, its completion carries the same one.
	ScheduleEventID int64 `json:"seid,omitempty"`

	// Attributes are event type specific attributes
	Attributes any `json:"attr,omitempty"`

	// VisibleAt is the earliest time a pending event is delivered to the workflow. Used for timers.
	VisibleAt *time.Time `json:"v,omitempty"`
}

func (e Event) String() string {
	return e.Type.String()
}

type HistoryEventOption func(e *Event)

func ScheduleEventID(scheduleEventID int64) HistoryEventOption {
	return func(e *Event) {
		e.ScheduleEventID = scheduleEventID
	}
}

func VisibleAt(visibleAt time.Time) HistoryEventOption {
	return func(e *Event) {
		e.VisibleAt = &visibleAt
	}
}

// NewHistoryEvent creates an event for the given position in the history.
func NewHistoryEvent(sequenceID int64, timestamp time.Time, eventType EventType, attributes any, opts ...HistoryEventOption) *Event {
	e := &Event{
		ID:         uuid.NewString(),
		SequenceID: sequenceID,
		Type:       eventType,
		Timestamp:  timestamp,
		Attributes: attributes,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// NewPendingEvent creates an event that has not been added to a history yet.
func NewPendingEvent(timestamp time.Time, eventType EventType, attributes any, opts ...HistoryEventOption) *Event {
	return NewHistoryEvent(0, timestamp, eventType, attributes, opts...)
}
