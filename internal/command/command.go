package command

import (
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/core"
)

type CommandResult struct {
	// Events are appended to the history of the workflow instance
	Events []*history.Event

	// ActivityEvents are scheduled as activity tasks
	ActivityEvents []*history.Event

	// TimerEvents are stored as pending events and delivered once they are visible
	TimerEvents []*history.Event

	// Status is the status of the workflow instance after this command
	Status core.WorkflowInstanceStatus
}

type Command interface {
	// ID is the schedule event id of the command
	ID() int64

	// Name of the command, used for diagnostics
	Name() string

	State() CommandState

	// Commit marks the command as committed without producing events. This is used
	// when replaying, the events of the command are already part of the history.
	Commit()

	// Execute commits a pending command and returns the events it produces. Returns nil
	// if there is nothing to do.
	Execute(clock clock.Clock) *CommandResult

	// Done marks the command as done. This indicates that the result of the command has
	// been applied to the workflow.
	Done()
}

type command struct {
	id    int64
	name  string
	state CommandState
}

func (c *command) ID() int64 {
	return c.id
}

func (c *command) Name() string {
	return c.name
}

func (c *command) State() CommandState {
	return c.state
}

func (c *command) Commit() {
	switch c.state {
	case CommandState_Pending:
		c.state = CommandState_Committed
	default:
		c.invalidStateTransition(CommandState_Committed)
	}
}

func (c *command) Done() {
	switch c.state {
	case CommandState_Committed:
		c.state = CommandState_Done
	default:
		c.invalidStateTransition(CommandState_Done)
	}
}

func (c *command) invalidStateTransition(to CommandState) {
	panic(fmt.Errorf("invalid state transition for command %s: %s -> %s", c.name, c.state, to))
}
