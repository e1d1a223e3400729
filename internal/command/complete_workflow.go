package command

import (
	"github.com/benbjohnson/clock"

	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/backend/payload"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/internal/workflowerrors"
)

type CompleteWorkflowCommand struct {
	command

	Status core.WorkflowInstanceStatus
	Result payload.Payload
	Error  *workflowerrors.Error
}

var _ Command = (*CompleteWorkflowCommand)(nil)

func NewCompleteWorkflowCommand(id int64, status core.WorkflowInstanceStatus, result payload.Payload, err *workflowerrors.Error) *CompleteWorkflowCommand {
	return &CompleteWorkflowCommand{
		command: command{
			id:    id,
			name:  "CompleteWorkflow",
			state: CommandState_Pending,
		},
		Status: status,
		Result: result,
		Error:  err,
	}
}

func (c *CompleteWorkflowCommand) Execute(clock clock.Clock) *CommandResult {
	switch c.state {
	case CommandState_Pending:
		// Completing the workflow is final, nothing will report back to this command.
		c.state = CommandState_Done

		return &CommandResult{
			Status: c.Status,
			Events: []*history.Event{
				history.NewPendingEvent(
					clock.Now(),
					history.EventType_WorkflowExecutionFinished,
					&history.ExecutionFinishedAttributes{
						Status: c.Status,
						Result: c.Result,
						Error:  c.Error,
					},
				),
			},
		}
	}

	return nil
}
