package diag

import (
	"context"
	"time"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/core"
)

// json: serialization in this file is part of the diagnostics API

type WorkflowInstanceRef struct {
	Instance    *core.WorkflowInstance      `json:"instance,omitempty"`
	CreatedAt   time.Time                   `json:"created_at,omitempty"`
	CompletedAt *time.Time                  `json:"completed_at,omitempty"`
	Status      core.WorkflowInstanceStatus `json:"status"`
}

type Event struct {
	ID              string     `json:"id,omitempty"`
	SequenceID      int64      `json:"sequence_id,omitempty"`
	Type            string     `json:"type,omitempty"`
	Timestamp       time.Time  `json:"timestamp,omitempty"`
	ScheduleEventID int64      `json:"schedule_event_id,omitempty"`
	Attributes      any        `json:"attributes,omitempty"`
	VisibleAt       *time.Time `json:"visible_at,omitempty"`
}

type WorkflowInstanceInfo struct {
	*WorkflowInstanceRef

	History []*Event `json:"history,omitempty"`
}

// Backend is implemented by history stores that can list their instances.
type Backend interface {
	backend.Backend

	// GetWorkflowInstance returns the instance with the given id or nil if it does not exist
	GetWorkflowInstance(ctx context.Context, instanceID string) (*WorkflowInstanceRef, error)

	// GetWorkflowInstances returns up to count instances, newest first, starting after the given instance
	GetWorkflowInstances(ctx context.Context, afterInstanceID string, count int) ([]*WorkflowInstanceRef, error)
}
