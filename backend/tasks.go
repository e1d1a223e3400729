package backend

import (
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/core"
)

// WorkflowTask represents work for one workflow execution slice.
type WorkflowTask struct {
	// ID identifies the lock the backend handed out with this task. Extending or completing
	// the task fails with ErrTaskNotFound once the lock expired and was taken by someone else.
	ID string

	// WorkflowInstance is the workflow instance that this task is for
	WorkflowInstance *core.WorkflowInstance

	WorkflowInstanceStatus core.WorkflowInstanceStatus

	// LastSequenceID is the sequence ID of the newest event in the workflow instances's history
	LastSequenceID int64

	// NewEvents are new events since the last task execution
	NewEvents []*history.Event

	// Backend specific data, only the producer of the task should rely on this.
	CustomData any
}

// ActivityTask represents one activity execution.
type ActivityTask struct {
	// ID identifies the lock on the activity, the activity itself is identified by Event.ID
	ID string

	WorkflowInstance *core.WorkflowInstance

	Event *history.Event
}
