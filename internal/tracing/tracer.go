package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Tracer returns the tracer used throughout the engine for the given provider.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	return tp.Tracer(TracerName)
}

const TracerName = "go-transcribe"

// WorkflowTracer starts spans below the span of the currently executing workflow task.
type WorkflowTracer struct {
	parentSpan trace.Span
	tracer     trace.Tracer
}

func NewWorkflowTracer(tracer trace.Tracer) *WorkflowTracer {
	return &WorkflowTracer{
		tracer: tracer,
	}
}

func (wt *WorkflowTracer) UpdateExecution(span trace.Span) {
	wt.parentSpan = span
}

func (wt *WorkflowTracer) Start(name string, opts ...trace.SpanStartOption) trace.Span {
	ctx := context.Background()
	if wt.parentSpan != nil {
		ctx = trace.ContextWithSpan(ctx, wt.parentSpan)
	}

	_, span := wt.tracer.Start(ctx, name, opts...)
	return span
}
