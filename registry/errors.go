package registry

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not registered")

type ErrInvalidWorkflow struct {
	Name   string
	Reason string
}

func (e *ErrInvalidWorkflow) Error() string {
	return fmt.Sprintf("invalid workflow %s: %s", e.Name, e.Reason)
}

type ErrInvalidActivity struct {
	Name   string
	Reason string
}

func (e *ErrInvalidActivity) Error() string {
	return fmt.Sprintf("invalid activity %s: %s", e.Name, e.Reason)
}

type ErrWorkflowAlreadyRegistered struct {
	Name string
}

func (e *ErrWorkflowAlreadyRegistered) Error() string {
	return fmt.Sprintf("workflow with name %q already registered", e.Name)
}

type ErrActivityAlreadyRegistered struct {
	Name string
}

func (e *ErrActivityAlreadyRegistered) Error() string {
	return fmt.Sprintf("activity with name %q already registered", e.Name)
}
