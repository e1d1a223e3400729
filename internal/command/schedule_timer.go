package command

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/voxflow/go-transcribe/backend/history"
)

type ScheduleTimerCommand struct {
	command

	At        time.Time
	TimerName string
}

var _ Command = (*ScheduleTimerCommand)(nil)

func NewScheduleTimerCommand(id int64, at time.Time, name string) *ScheduleTimerCommand {
	return &ScheduleTimerCommand{
		command: command{
			id:    id,
			name:  "ScheduleTimer",
			state: CommandState_Pending,
		},
		At:        at,
		TimerName: name,
	}
}

// Execute produces the TimerScheduled history event and the future TimerFired event,
// which does not become visible before the timer's fire time.
func (c *ScheduleTimerCommand) Execute(clock clock.Clock) *CommandResult {
	switch c.state {
	case CommandState_Pending:
		c.state = CommandState_Committed

		now := clock.Now()

		return &CommandResult{
			Events: []*history.Event{
				history.NewPendingEvent(
					now,
					history.EventType_TimerScheduled,
					&history.TimerScheduledAttributes{
						At:   c.At,
						Name: c.TimerName,
					},
					history.ScheduleEventID(c.id),
				),
			},
			TimerEvents: []*history.Event{
				history.NewPendingEvent(
					now,
					history.EventType_TimerFired,
					&history.TimerFiredAttributes{
						ScheduledAt: now,
						At:          c.At,
						Name:        c.TimerName,
					},
					history.ScheduleEventID(c.id),
					history.VisibleAt(c.At),
				),
			},
		}
	}

	return nil
}
