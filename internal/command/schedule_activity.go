package command

import (
	"github.com/benbjohnson/clock"

	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/backend/payload"
)

type ScheduleActivityCommand struct {
	command

	ActivityName string
	Inputs       []payload.Payload
	Attempt      int
}

var _ Command = (*ScheduleActivityCommand)(nil)

func NewScheduleActivityCommand(id int64, name string, inputs []payload.Payload, attempt int) *ScheduleActivityCommand {
	return &ScheduleActivityCommand{
		command: command{
			id:    id,
			name:  "ScheduleActivity",
			state: CommandState_Pending,
		},
		ActivityName: name,
		Inputs:       inputs,
		Attempt:      attempt,
	}
}

func (c *ScheduleActivityCommand) Execute(clock clock.Clock) *CommandResult {
	switch c.state {
	case CommandState_Pending:
		c.state = CommandState_Committed

		event := history.NewPendingEvent(
			clock.Now(),
			history.EventType_ActivityScheduled,
			&history.ActivityScheduledAttributes{
				Name:    c.ActivityName,
				Inputs:  c.Inputs,
				Attempt: c.Attempt,
			},
			history.ScheduleEventID(c.id),
		)

		return &CommandResult{
			Events:         []*history.Event{event},
			ActivityEvents: []*history.Event{event},
		}
	}

	return nil
}
