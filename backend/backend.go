package backend

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/trace"

	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/backend/metrics"
	"github.com/voxflow/go-transcribe/core"
)

var (
	ErrInstanceNotFound      = errors.New("workflow instance not found")
	ErrInstanceAlreadyExists = errors.New("workflow instance already exists")
	ErrInstanceNotFinished   = errors.New("workflow instance is not finished")
	ErrInstanceFinished      = errors.New("workflow instance is already finished")

	// ErrSequenceConflict is returned when a workflow task is completed against a history
	// that changed since the task was handed out, for example because the task lock expired
	// and another worker already checkpointed the instance.
	ErrSequenceConflict = errors.New("workflow instance history was modified concurrently")

	// ErrTaskNotFound is returned when a task is extended or completed that is not locked by
	// this worker anymore.
	ErrTaskNotFound = errors.New("task not found or not locked by this worker")
)

// Backend is the durable history store. Instances are addressed by their InstanceID.
type Backend interface {
	// CreateWorkflowInstance creates a new workflow instance with the given started event
	CreateWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance, event *history.Event) error

	// TerminateWorkflowInstance adds a termination event for a running workflow instance
	TerminateWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance, event *history.Event) error

	// RemoveWorkflowInstance removes a finished workflow instance and its history
	RemoveWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance) error

	// RemoveWorkflowInstances removes finished workflow instances matching the given options
	RemoveWorkflowInstances(ctx context.Context, options ...RemovalOption) error

	// GetWorkflowInstanceStatus returns the durable status of the given workflow instance
	GetWorkflowInstanceStatus(ctx context.Context, instance *core.WorkflowInstance) (core.WorkflowInstanceStatus, error)

	// GetWorkflowInstanceHistory returns the workflow history for the given instance. When lastSequenceID
	// is given, only events after that event are returned. Otherwise the full history is returned.
	GetWorkflowInstanceHistory(ctx context.Context, instance *core.WorkflowInstance, lastSequenceID *int64) ([]*history.Event, error)

	// GetWorkflowTask returns a pending workflow task or nil if there are no pending workflow executions.
	// The returned instance is locked until the task is completed or the lock expires.
	GetWorkflowTask(ctx context.Context) (*WorkflowTask, error)

	// ExtendWorkflowTask extends the lock of a workflow task
	ExtendWorkflowTask(ctx context.Context, task *WorkflowTask) error

	// CompleteWorkflowTask checkpoints a workflow task retrieved using GetWorkflowTask
	//
	// In one transaction this appends executedEvents to the history, removes the events the task
	// consumed from the pending events, schedules activityEvents as activity tasks, stores
	// timerEvents as pending events visible at their fire time, and moves the instance to status.
	CompleteWorkflowTask(
		ctx context.Context, task *WorkflowTask, status core.WorkflowInstanceStatus,
		executedEvents, activityEvents, timerEvents []*history.Event) error

	// GetActivityTask returns a pending activity task or nil if there are no pending activities
	GetActivityTask(ctx context.Context) (*ActivityTask, error)

	// ExtendActivityTask extends the lock of an activity task
	ExtendActivityTask(ctx context.Context, task *ActivityTask) error

	// CompleteActivityTask completes an activity task retrieved using GetActivityTask. The result
	// event is delivered to the workflow instance as a pending event.
	CompleteActivityTask(ctx context.Context, task *ActivityTask, result *history.Event) error

	// GetStats returns stats about the backend
	GetStats(ctx context.Context) (*Stats, error)

	// Tracer returns the configured tracer for the backend
	Tracer() trace.Tracer

	// Metrics returns the configured metrics client for the backend
	Metrics() metrics.Client

	// Options returns the configured options for the backend
	Options() *Options

	// Close closes any underlying resources
	Close() error
}
