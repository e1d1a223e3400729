package history

import (
	"github.com/voxflow/go-transcribe/backend/payload"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/internal/workflowerrors"
)

type ExecutionFinishedAttributes struct {
	Status core.WorkflowInstanceStatus `json:"status"`

	Result payload.Payload `json:"result,omitempty"`

	Error *workflowerrors.Error `json:"error,omitempty"`
}
