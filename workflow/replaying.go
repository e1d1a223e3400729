package workflow

import (
	"github.com/voxflow/go-transcribe/internal/workflowstate"
)

// Replaying returns true while the workflow re-executes events that are already part of its history.
func Replaying(ctx Context) bool {
	wfState := workflowstate.WorkflowState(ctx)
	return wfState.Replaying()
}
