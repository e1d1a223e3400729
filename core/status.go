package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/qmuntal/stateless"
)

type WorkflowInstanceStatus int

const (
	WorkflowInstanceStatusRunning WorkflowInstanceStatus = iota
	WorkflowInstanceStatusCompleted
	WorkflowInstanceStatusFailed
	WorkflowInstanceStatusTimedOut
	WorkflowInstanceStatusTerminated
)

var ErrInvalidStatusTransition = errors.New("invalid workflow instance status transition")

func (s WorkflowInstanceStatus) String() string {
	switch s {
	case WorkflowInstanceStatusRunning:
		return "Running"
	case WorkflowInstanceStatusCompleted:
		return "Completed"
	case WorkflowInstanceStatusFailed:
		return "Failed"
	case WorkflowInstanceStatusTimedOut:
		return "TimedOut"
	case WorkflowInstanceStatusTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Terminal returns true if no further transitions are possible from this status.
func (s WorkflowInstanceStatus) Terminal() bool {
	return s != WorkflowInstanceStatusRunning
}

func (s WorkflowInstanceStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *WorkflowInstanceStatus) UnmarshalText(b []byte) error {
	v, err := ParseWorkflowInstanceStatus(string(b))
	if err != nil {
		return err
	}

	*s = v
	return nil
}

func ParseWorkflowInstanceStatus(v string) (WorkflowInstanceStatus, error) {
	for s := WorkflowInstanceStatusRunning; s <= WorkflowInstanceStatusTerminated; s++ {
		if s.String() == v {
			return s, nil
		}
	}

	return WorkflowInstanceStatusRunning, fmt.Errorf("unknown workflow instance status %q", v)
}

type statusTrigger string

const (
	triggerComplete  statusTrigger = "complete"
	triggerFail      statusTrigger = "fail"
	triggerTimeout   statusTrigger = "timeout"
	triggerTerminate statusTrigger = "terminate"
)

var statusTriggers = map[WorkflowInstanceStatus]statusTrigger{
	WorkflowInstanceStatusCompleted:  triggerComplete,
	WorkflowInstanceStatusFailed:     triggerFail,
	WorkflowInstanceStatusTimedOut:   triggerTimeout,
	WorkflowInstanceStatusTerminated: triggerTerminate,
}

func newStatusMachine(current WorkflowInstanceStatus) *stateless.StateMachine {
	sm := stateless.NewStateMachine(current)

	sm.Configure(WorkflowInstanceStatusRunning).
		Permit(triggerComplete, WorkflowInstanceStatusCompleted).
		Permit(triggerFail, WorkflowInstanceStatusFailed).
		Permit(triggerTimeout, WorkflowInstanceStatusTimedOut).
		Permit(triggerTerminate, WorkflowInstanceStatusTerminated)

	// Terminal states accept no triggers
	sm.Configure(WorkflowInstanceStatusCompleted)
	sm.Configure(WorkflowInstanceStatusFailed)
	sm.Configure(WorkflowInstanceStatusTimedOut)
	sm.Configure(WorkflowInstanceStatusTerminated)

	return sm
}

// TransitionStatus validates moving an instance from one status to another. Staying
// in Running is always allowed, everything else has to go from Running to exactly
// one terminal status.
func TransitionStatus(from, to WorkflowInstanceStatus) error {
	if from == WorkflowInstanceStatusRunning && to == WorkflowInstanceStatusRunning {
		return nil
	}

	trigger, ok := statusTriggers[to]
	if !ok {
		return fmt.Errorf("%w: %v -> %v", ErrInvalidStatusTransition, from, to)
	}

	sm := newStatusMachine(from)
	if err := sm.FireCtx(context.Background(), trigger); err != nil {
		return fmt.Errorf("%w: %v -> %v", ErrInvalidStatusTransition, from, to)
	}

	return nil
}
