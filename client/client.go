package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/backend/metrics"
	"github.com/voxflow/go-transcribe/core"
	a "github.com/voxflow/go-transcribe/internal/args"
	"github.com/voxflow/go-transcribe/internal/fn"
	"github.com/voxflow/go-transcribe/internal/log"
	"github.com/voxflow/go-transcribe/internal/metrickeys"
	"github.com/voxflow/go-transcribe/internal/tracing"
	"github.com/voxflow/go-transcribe/internal/workflowerrors"
	"github.com/voxflow/go-transcribe/workflow"
)

var (
	ErrWorkflowTerminated = errors.New("workflow terminated")
	ErrWorkflowTimedOut   = errors.New("workflow timed out")

	// ErrWaitTimeout is returned when a workflow instance did not finish while waiting for it
	ErrWaitTimeout = errors.New("workflow did not finish in specified timeout")
)

type WorkflowInstanceOptions struct {
	// InstanceID of the new instance. A random id is generated if empty.
	InstanceID string
}

type Client struct {
	backend backend.Backend
	clock   clock.Clock
}

func New(b backend.Backend) *Client {
	return &Client{
		backend: b,
		clock:   b.Options().Clock,
	}
}

// CreateWorkflowInstance creates a new workflow instance of the given workflow.
func (c *Client) CreateWorkflowInstance(ctx context.Context, options WorkflowInstanceOptions, wf workflow.Workflow, args ...any) (*core.WorkflowInstance, error) {
	var workflowName string

	if name, ok := wf.(string); ok {
		workflowName = name
	} else {
		workflowName = fn.Name(wf)

		// Check arguments if actual workflow function given here
		if err := a.ParamsMatch(wf, 1, args...); err != nil {
			return nil, err
		}
	}

	inputs, err := a.ArgsToInputs(c.backend.Options().Converter, args...)
	if err != nil {
		return nil, fmt.Errorf("converting arguments: %w", err)
	}

	instanceID := options.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	wfi := core.NewWorkflowInstance(instanceID, uuid.NewString())

	ctx, span := c.backend.Tracer().Start(ctx, fmt.Sprintf("CreateWorkflowInstance: %s", workflowName), trace.WithAttributes(
		attribute.String(log.InstanceIDKey, wfi.InstanceID),
		attribute.String(log.WorkflowNameKey, workflowName),
	))
	defer span.End()

	startedEvent := history.NewPendingEvent(
		c.clock.Now(),
		history.EventType_WorkflowExecutionStarted,
		&history.ExecutionStartedAttributes{
			Name:   workflowName,
			Inputs: inputs,
		})

	if err := c.backend.CreateWorkflowInstance(ctx, wfi, startedEvent); err != nil {
		return nil, tracing.WithSpanError(span, fmt.Errorf("creating workflow instance: %w", err))
	}

	c.backend.Options().Logger.Debug(
		"Created workflow instance",
		log.InstanceIDKey, wfi.InstanceID,
		log.ExecutionIDKey, wfi.ExecutionID,
		log.WorkflowNameKey, workflowName,
	)

	c.backend.Metrics().Counter(metrickeys.WorkflowInstanceCreated, metrics.Tags{}, 1)

	return wfi, nil
}

// GetWorkflowInstanceStatus returns the durable status of the given workflow instance.
func (c *Client) GetWorkflowInstanceStatus(ctx context.Context, instance *core.WorkflowInstance) (core.WorkflowInstanceStatus, error) {
	return c.backend.GetWorkflowInstanceStatus(ctx, instance)
}

// GetWorkflowInstanceHistory returns the full recorded history of the given workflow instance.
func (c *Client) GetWorkflowInstanceHistory(ctx context.Context, instance *core.WorkflowInstance) ([]*history.Event, error) {
	ctx, span := c.backend.Tracer().Start(ctx, "GetWorkflowInstanceHistory", trace.WithAttributes(
		attribute.String(log.InstanceIDKey, instance.InstanceID),
	))
	defer span.End()

	return c.backend.GetWorkflowInstanceHistory(ctx, instance, nil)
}

// TerminateWorkflowInstance stops a running workflow instance. The instance does not get a chance
// to react, its status becomes Terminated once the next workflow task is processed.
func (c *Client) TerminateWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance, reason string) error {
	ctx, span := c.backend.Tracer().Start(ctx, "TerminateWorkflowInstance", trace.WithAttributes(
		attribute.String(log.InstanceIDKey, instance.InstanceID),
	))
	defer span.End()

	terminatedEvent := history.NewPendingEvent(
		c.clock.Now(),
		history.EventType_WorkflowExecutionTerminated,
		&history.ExecutionTerminatedAttributes{
			Reason: reason,
		},
	)

	if err := c.backend.TerminateWorkflowInstance(ctx, instance, terminatedEvent); err != nil {
		return tracing.WithSpanError(span, err)
	}

	c.backend.Options().Logger.Debug("Terminated workflow instance", log.InstanceIDKey, instance.InstanceID, "reason", reason)

	return nil
}

// WaitForWorkflowInstance waits for the given workflow instance to finish or until the given timeout has expired.
func (c *Client) WaitForWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance, timeout time.Duration) (core.WorkflowInstanceStatus, error) {
	if timeout == 0 {
		timeout = time.Second * 20
	}

	ctx, span := c.backend.Tracer().Start(ctx, "WaitForWorkflowInstance", trace.WithAttributes(
		attribute.String(log.InstanceIDKey, instance.InstanceID),
	))
	defer span.End()

	b := backoff.ExponentialBackOff{
		InitialInterval:     time.Millisecond * 1,
		MaxInterval:         time.Second * 1,
		Multiplier:          1.5,
		RandomizationFactor: 0.5,
		MaxElapsedTime:      timeout,
		Stop:                backoff.Stop,
		Clock:               c.clock,
	}
	b.Reset()

	ticker := backoff.NewTickerWithTimer(backoff.WithContext(&b, ctx), &clockTimer{clock: c.clock})
	defer ticker.Stop()

	for range ticker.C {
		s, err := c.backend.GetWorkflowInstanceStatus(ctx, instance)
		if err != nil {
			return s, fmt.Errorf("getting workflow status: %w", err)
		}

		if s.Terminal() {
			return s, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return core.WorkflowInstanceStatusRunning, err
	}

	return core.WorkflowInstanceStatusRunning, ErrWaitTimeout
}

// GetWorkflowResult gets the workflow result for the given workflow result. It first waits for the workflow to finish or until
// the given timeout has expired.
func GetWorkflowResult[T any](ctx context.Context, c *Client, instance *core.WorkflowInstance, timeout time.Duration) (T, error) {
	b := c.backend

	ctx, span := b.Tracer().Start(ctx, "GetWorkflowResult", trace.WithAttributes(
		attribute.String(log.InstanceIDKey, instance.InstanceID),
	))
	defer span.End()

	if _, err := c.WaitForWorkflowInstance(ctx, instance, timeout); err != nil {
		return *new(T), fmt.Errorf("workflow did not finish in time: %w", err)
	}

	h, err := b.GetWorkflowInstanceHistory(ctx, instance, nil)
	if err != nil {
		return *new(T), fmt.Errorf("getting workflow history: %w", err)
	}

	// Iterate over history backwards
	for i := len(h) - 1; i >= 0; i-- {
		event := h[i]
		switch event.Type {
		case history.EventType_WorkflowExecutionFinished:
			a := event.Attributes.(*history.ExecutionFinishedAttributes)

			if a.Status == core.WorkflowInstanceStatusTimedOut {
				if a.Error == nil {
					return *new(T), ErrWorkflowTimedOut
				}

				return *new(T), fmt.Errorf("%w: %w", ErrWorkflowTimedOut, workflowerrors.ToError(a.Error))
			}

			if a.Error != nil {
				return *new(T), workflowerrors.ToError(a.Error)
			}

			var r T
			if err := b.Options().Converter.From(a.Result, &r); err != nil {
				return *new(T), fmt.Errorf("converting result: %w", err)
			}

			return r, nil

		case history.EventType_WorkflowExecutionTerminated:
			return *new(T), ErrWorkflowTerminated
		}
	}

	return *new(T), errors.New("workflow finished, but could not find result event")
}

// RemoveWorkflowInstance removes the given workflow instance from the backend.
func (c *Client) RemoveWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance) error {
	ctx, span := c.backend.Tracer().Start(ctx, "RemoveWorkflowInstance", trace.WithAttributes(
		attribute.String(log.InstanceIDKey, instance.InstanceID),
	))
	defer span.End()

	return c.backend.RemoveWorkflowInstance(ctx, instance)
}

// RemoveWorkflowInstances removes finished workflow instances matching the given options.
func (c *Client) RemoveWorkflowInstances(ctx context.Context, options ...backend.RemovalOption) error {
	ctx, span := c.backend.Tracer().Start(ctx, "RemoveWorkflowInstances")
	defer span.End()

	return c.backend.RemoveWorkflowInstances(ctx, options...)
}

// GetStats returns backend stats.
func (c *Client) GetStats(ctx context.Context) (*backend.Stats, error) {
	return c.backend.GetStats(ctx)
}

// clockTimer drives backoff tickers from the configured clock
type clockTimer struct {
	clock clock.Clock
	timer *clock.Timer
}

func (t *clockTimer) Start(duration time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.Timer(duration)
	} else {
		t.timer.Reset(duration)
	}
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}
