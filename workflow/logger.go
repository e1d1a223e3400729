package workflow

import (
	"log/slog"

	"github.com/voxflow/go-transcribe/internal/workflowstate"
)

// Logger returns a logger that drops records while the workflow is replaying.
func Logger(ctx Context) *slog.Logger {
	wfState := workflowstate.WorkflowState(ctx)
	return wfState.Logger()
}
