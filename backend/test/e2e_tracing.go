package test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/voxflow/go-transcribe/client"
	"github.com/voxflow/go-transcribe/internal/fn"
	"github.com/voxflow/go-transcribe/registry"
	"github.com/voxflow/go-transcribe/worker"
	"github.com/voxflow/go-transcribe/workflow"
)

var e2eTracingTests = []backendTest{
	{
		name: "Tracing/WorkflowsHaveSpans",
		withSpans: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend, exporter *tracetest.InMemoryExporter) {
			wf := func(ctx workflow.Context) error {
				return nil
			}
			require.NoError(t, w.RegisterWorkflow(wf, registry.WithName("transcribe")))
			require.NoError(t, w.Start(ctx))

			instance := runWorkflow(t, ctx, c, "transcribe")
			_, err := client.GetWorkflowResult[any](ctx, c, instance, time.Second*5)
			require.NoError(t, err)

			spans := exporter.GetSpans().Snapshots()

			createWorkflowSpan := findSpan(spans, func(span trace.ReadOnlySpan) bool {
				return span.Name() == "CreateWorkflowInstance: transcribe"
			})
			require.NotNil(t, createWorkflowSpan)

			workflowSpan := findSpan(spans, func(span trace.ReadOnlySpan) bool {
				return span.Name() == "Workflow: transcribe"
			})
			require.NotNil(t, workflowSpan)
		},
	},
	{
		name: "Tracing/TimersHaveSpans",
		withSpans: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend, exporter *tracetest.InMemoryExporter) {
			wf := func(ctx workflow.Context) error {
				if _, err := workflow.ScheduleTimer(ctx, time.Millisecond*20).Get(ctx); err != nil {
					return err
				}

				return workflow.Sleep(ctx, time.Millisecond*10, workflow.WithTimerName("poll"))
			}
			require.NoError(t, w.RegisterWorkflow(wf, registry.WithName("wf")))
			require.NoError(t, w.Start(ctx))

			instance := runWorkflow(t, ctx, c, "wf")
			_, err := client.GetWorkflowResult[any](ctx, c, instance, time.Second*5)
			require.NoError(t, err)

			spans := exporter.GetSpans().Snapshots()

			scheduleSpans := 0
			for _, span := range spans {
				if span.Name() == "ScheduleTimer" {
					scheduleSpans++
				}
			}
			require.Equal(t, 2, scheduleSpans, "timers are only traced when first scheduled, not on replay")

			workflowSpan := findSpan(spans, func(span trace.ReadOnlySpan) bool {
				return span.Name() == "Workflow: wf"
			})
			require.NotNil(t, workflowSpan)

			// The span of the workflow ends in the final task, the named timer fires in that task
			timerSpan := findSpan(spans, func(span trace.ReadOnlySpan) bool {
				return span.Name() == "Timer: poll"
			})
			require.NotNil(t, timerSpan)
			require.Equal(t,
				workflowSpan.SpanContext().SpanID().String(),
				timerSpan.Parent().SpanID().String(),
			)
		},
	},
	{
		name: "Tracing/ActivitiesHaveSpans",
		withSpans: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend, exporter *tracetest.InMemoryExporter) {
			a := func(ctx context.Context) (int, error) {
				return 42, nil
			}
			wf := func(ctx workflow.Context) (int, error) {
				return workflow.ExecuteActivity[int](ctx, workflow.DefaultActivityOptions, a).Get(ctx)
			}
			require.NoError(t, w.RegisterWorkflow(wf, registry.WithName("wf")))
			require.NoError(t, w.RegisterActivity(a))
			require.NoError(t, w.Start(ctx))

			instance := runWorkflow(t, ctx, c, "wf")
			r, err := client.GetWorkflowResult[int](ctx, c, instance, time.Second*5)
			require.NoError(t, err)
			require.Equal(t, 42, r)

			spans := exporter.GetSpans().Snapshots()

			require.NotNil(t, findSpan(spans, func(span trace.ReadOnlySpan) bool {
				return span.Name() == "ExecuteActivity: "+fn.Name(a)
			}))

			require.NotNil(t, findSpan(spans, func(span trace.ReadOnlySpan) bool {
				return strings.HasPrefix(span.Name(), "Activity: ")
			}))
		},
	},
}

func findSpan(spans []trace.ReadOnlySpan, f func(trace.ReadOnlySpan) bool) trace.ReadOnlySpan {
	for _, span := range spans {
		if f(span) {
			return span
		}
	}

	return nil
}
