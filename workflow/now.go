package workflow

import (
	"time"

	"github.com/voxflow/go-transcribe/internal/workflowstate"
)

// Now returns the logical time of the workflow: the time the current workflow task started,
// as recorded in the history. It returns the same values on every replay.
func Now(ctx Context) time.Time {
	wfState := workflowstate.WorkflowState(ctx)
	return wfState.Time()
}
