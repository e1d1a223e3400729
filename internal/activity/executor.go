package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/converter"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/backend/payload"
	"github.com/voxflow/go-transcribe/internal/args"
	"github.com/voxflow/go-transcribe/internal/log"
	"github.com/voxflow/go-transcribe/internal/tracing"
	"github.com/voxflow/go-transcribe/internal/workflowerrors"
	"github.com/voxflow/go-transcribe/registry"
)

type Executor struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	converter converter.Converter
	r         *registry.Registry
}

func NewExecutor(logger *slog.Logger, tracer trace.Tracer, converter converter.Converter, r *registry.Registry) *Executor {
	return &Executor{
		logger:    logger,
		tracer:    tracer,
		converter: converter,
		r:         r,
	}
}

// ExecuteActivity runs a single attempt of the activity scheduled by the given task. Panics are
// recovered and reported as errors, they are never retried.
func (e *Executor) ExecuteActivity(ctx context.Context, task *backend.ActivityTask) (payload.Payload, error) {
	a := task.Event.Attributes.(*history.ActivityScheduledAttributes)

	activity, err := e.r.GetActivity(a.Name)
	if err != nil {
		return nil, workflowerrors.NewPermanentError(err)
	}

	activityFn := reflect.ValueOf(activity)
	if activityFn.Type().Kind() != reflect.Func {
		return nil, workflowerrors.NewPermanentError(errors.New("activity not a function"))
	}

	args, addContext, err := args.InputsToArgs(e.converter, activityFn, a.Inputs)
	if err != nil {
		return nil, workflowerrors.NewPermanentError(fmt.Errorf("converting activity inputs: %w", err))
	}

	// Add activity state to context
	as := NewActivityState(
		task.Event.ID,
		a.Name,
		a.Attempt,
		task.WorkflowInstance,
		e.logger)
	activityCtx := WithActivityState(ctx, as)

	activityCtx, span := e.tracer.Start(activityCtx, fmt.Sprintf("Activity: %s", a.Name), trace.WithAttributes(
		attribute.String(log.ActivityNameKey, a.Name),
		attribute.String(log.InstanceIDKey, task.WorkflowInstance.InstanceID),
		attribute.String(log.ActivityIDKey, task.Event.ID),
		attribute.Int(log.AttemptKey, a.Attempt),
	))
	defer span.End()

	// Execute activity
	if addContext {
		args[0] = reflect.ValueOf(activityCtx)
	}

	r, err := callActivity(activityFn, args)
	if err != nil {
		return nil, tracing.WithSpanError(span, err)
	}

	if len(r) < 1 || len(r) > 2 {
		return nil, errors.New("activity has to return either (error) or (<result>, error)")
	}

	var result payload.Payload

	if len(r) > 1 {
		var err error
		result, err = e.converter.To(r[0].Interface())
		if err != nil {
			return nil, fmt.Errorf("converting activity result: %w", err)
		}
	}

	errResult := r[len(r)-1]
	if errResult.IsNil() {
		return result, nil
	}

	errInterface, ok := errResult.Interface().(error)
	if !ok {
		return nil, fmt.Errorf("activity error result does not satisfy error interface (%T): %v", errResult, errResult)
	}

	return result, tracing.WithSpanError(span, errInterface)
}

func callActivity(fn reflect.Value, args []reflect.Value) (r []reflect.Value, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = workflowerrors.NewPanicError(fmt.Sprintf("panic in activity: %v", rec))
		}
	}()

	return fn.Call(args), nil
}
