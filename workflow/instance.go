package workflow

import (
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/internal/workflowstate"
)

func WorkflowInstance(ctx Context) *core.WorkflowInstance {
	wfState := workflowstate.WorkflowState(ctx)
	return wfState.Instance()
}
