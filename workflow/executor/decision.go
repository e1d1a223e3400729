package executor

import (
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/core"
)

// Decision is the outcome of a single workflow task.
type Decision int

const (
	// DecisionNone means the workflow is waiting on actions scheduled in earlier tasks
	DecisionNone Decision = iota
	DecisionScheduleActivity
	DecisionScheduleTimer
	DecisionComplete
	DecisionFail
	DecisionTimeOut
	DecisionTerminate
)

func (d Decision) String() string {
	switch d {
	case DecisionNone:
		return "None"
	case DecisionScheduleActivity:
		return "ScheduleActivity"
	case DecisionScheduleTimer:
		return "ScheduleTimer"
	case DecisionComplete:
		return "Complete"
	case DecisionFail:
		return "Fail"
	case DecisionTimeOut:
		return "TimeOut"
	case DecisionTerminate:
		return "Terminate"
	default:
		return "Unknown"
	}
}

func decide(status core.WorkflowInstanceStatus, activityEvents, timerEvents []*history.Event) Decision {
	switch status {
	case core.WorkflowInstanceStatusCompleted:
		return DecisionComplete
	case core.WorkflowInstanceStatusFailed:
		return DecisionFail
	case core.WorkflowInstanceStatusTimedOut:
		return DecisionTimeOut
	case core.WorkflowInstanceStatusTerminated:
		return DecisionTerminate
	}

	switch {
	case len(activityEvents) > 0:
		return DecisionScheduleActivity
	case len(timerEvents) > 0:
		return DecisionScheduleTimer
	default:
		return DecisionNone
	}
}
