package test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/client"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/internal/fn"
	"github.com/voxflow/go-transcribe/worker"
	"github.com/voxflow/go-transcribe/workflow"
)

type backendTest struct {
	name string
	f    func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend)

	// withSpans is used instead of f by tests inspecting recorded spans
	withSpans func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend, exporter *tracetest.InMemoryExporter)
}

var testRetryOptions = workflow.RetryOptions{
	MaxAttempts:        3,
	FirstRetryInterval: time.Millisecond * 10,
	BackoffCoefficient: 1,
}

// EndToEndBackendTest runs workflows through a worker and client against the given backend.
func EndToEndBackendTest(t *testing.T, setup func(options ...backend.BackendOption) TestBackend, teardown func(b TestBackend)) {
	tests := []backendTest{
		{
			name: "SimpleWorkflow",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
				wf := func(ctx workflow.Context, msg string) (string, error) {
					return msg + " world", nil
				}
				register(t, ctx, w, []any{wf}, nil)

				output, err := runWorkflowWithResult[string](t, ctx, c, wf, "hello")

				require.Equal(t, "hello world", output)
				require.NoError(t, err)
			},
		},
		{
			name: "UnregisteredWorkflow",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
				wf := func(ctx workflow.Context, msg string) (string, error) {
					return msg + " world", nil
				}
				register(t, ctx, w, nil, nil)

				output, err := runWorkflowWithResult[string](t, ctx, c, wf, "hello")

				require.Zero(t, output)
				require.ErrorContains(t, err, "not found")
			},
		},
		{
			name: "WorkflowArgumentMismatch",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
				wf := func(ctx workflow.Context, p1 int) (int, error) {
					return 42, nil
				}
				register(t, ctx, w, []any{wf}, nil)

				// Start by name to skip the client side argument check
				instance, err := c.CreateWorkflowInstance(ctx, client.WorkflowInstanceOptions{}, fn.Name(wf))
				require.NoError(t, err)

				output, err := client.GetWorkflowResult[int](ctx, c, instance, time.Second*10)

				require.Zero(t, output)
				require.ErrorContains(t, err, "converting workflow inputs: mismatched argument count: expected 1, got 0")
			},
		},
		{
			name: "WorkflowPanic",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
				wf := func(ctx workflow.Context) (int, error) {
					panic("boom")
				}
				register(t, ctx, w, []any{wf}, nil)

				instance := runWorkflow(t, ctx, c, wf)
				_, err := client.GetWorkflowResult[int](ctx, c, instance, time.Second*10)
				require.ErrorContains(t, err, "panic in workflow: boom")

				s, err := c.GetWorkflowInstanceStatus(ctx, instance)
				require.NoError(t, err)
				require.Equal(t, core.WorkflowInstanceStatusFailed, s)
			},
		},
		{
			name: "WorkflowTimedOut",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
				wf := func(ctx workflow.Context) (string, error) {
					return "", workflow.ErrTimeoutExceeded
				}
				register(t, ctx, w, []any{wf}, nil)

				instance := runWorkflow(t, ctx, c, wf)
				_, err := client.GetWorkflowResult[string](ctx, c, instance, time.Second*10)
				require.ErrorIs(t, err, client.ErrWorkflowTimedOut)

				s, err := c.GetWorkflowInstanceStatus(ctx, instance)
				require.NoError(t, err)
				require.Equal(t, core.WorkflowInstanceStatusTimedOut, s)
			},
		},
		{
			name: "TerminateWorkflow",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
				wf := func(ctx workflow.Context) error {
					return workflow.Sleep(ctx, time.Hour)
				}
				register(t, ctx, w, []any{wf}, nil)

				instance := runWorkflow(t, ctx, c, wf)

				require.Eventually(t, func() bool {
					futureEvents, err := b.GetFutureEvents(ctx)
					return err == nil && len(futureEvents) == 1
				}, time.Second*5, time.Millisecond*10)

				require.NoError(t, c.TerminateWorkflowInstance(ctx, instance, "no longer needed"))

				s, err := c.WaitForWorkflowInstance(ctx, instance, time.Second*10)
				require.NoError(t, err)
				require.Equal(t, core.WorkflowInstanceStatusTerminated, s)

				_, err = client.GetWorkflowResult[any](ctx, c, instance, time.Second*10)
				require.ErrorIs(t, err, client.ErrWorkflowTerminated)

				require.ErrorIs(t, c.TerminateWorkflowInstance(ctx, instance, "again"), backend.ErrInstanceFinished)
			},
		},
		{
			name: "ActivityResult",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
				a := func(ctx context.Context, n int) (int, error) {
					return n * 2, nil
				}
				wf := func(ctx workflow.Context) (int, error) {
					r1, err := workflow.ExecuteActivity[int](ctx, workflow.DefaultActivityOptions, a, 21).Get(ctx)
					if err != nil {
						return 0, err
					}

					return workflow.ExecuteActivity[int](ctx, workflow.DefaultActivityOptions, a, r1).Get(ctx)
				}
				register(t, ctx, w, []any{wf}, []any{a})

				output, err := runWorkflowWithResult[int](t, ctx, c, wf)
				require.NoError(t, err)
				require.Equal(t, 84, output)
			},
		},
		{
			name: "UnregisteredActivity",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
				a := func(context.Context) (int, error) { return 0, nil }
				wf := func(ctx workflow.Context) (int, error) {
					return workflow.ExecuteActivity[int](ctx, workflow.DefaultActivityOptions, a).Get(ctx)
				}
				register(t, ctx, w, []any{wf}, nil)

				output, err := runWorkflowWithResult[int](t, ctx, c, wf)

				require.Zero(t, output)
				require.ErrorContains(t, err, "not registered")
			},
		},
		{
			name: "ActivityArgumentMismatch",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
				a := func(context.Context, int, int) error { return nil }
				wf := func(ctx workflow.Context) (int, error) {
					return workflow.ExecuteActivity[int](ctx, workflow.DefaultActivityOptions, a, 42).Get(ctx)
				}
				register(t, ctx, w, []any{wf}, []any{a})

				output, err := runWorkflowWithResult[int](t, ctx, c, wf)

				require.Zero(t, output)
				require.ErrorContains(t, err, "mismatched argument count: expected 2, got 1")
			},
		},
		{
			name: "ActivityRetriesTransientErrors",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
				var attempts atomic.Int32

				a := func(ctx context.Context) (string, error) {
					if attempts.Add(1) < 3 {
						return "", workflow.NewError(workflow.KindUnreachable, "service unavailable")
					}

					return "done", nil
				}
				wf := func(ctx workflow.Context) (string, error) {
					return workflow.ExecuteActivity[string](ctx, workflow.ActivityOptions{RetryOptions: testRetryOptions}, a).Get(ctx)
				}
				register(t, ctx, w, []any{wf}, []any{a})

				output, err := runWorkflowWithResult[string](t, ctx, c, wf)
				require.NoError(t, err)
				require.Equal(t, "done", output)
				require.Equal(t, int32(3), attempts.Load())
			},
		},
		{
			name: "ActivityPermanentErrorNotRetried",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
				var attempts atomic.Int32

				a := func(ctx context.Context) (string, error) {
					attempts.Add(1)
					return "", workflow.NewPermanentError(workflow.KindAuthFailure, "invalid key")
				}
				wf := func(ctx workflow.Context) (string, error) {
					return workflow.ExecuteActivity[string](ctx, workflow.ActivityOptions{RetryOptions: testRetryOptions}, a).Get(ctx)
				}
				register(t, ctx, w, []any{wf}, []any{a})

				_, err := runWorkflowWithResult[string](t, ctx, c, wf)
				require.ErrorContains(t, err, "invalid key")
				require.Equal(t, workflow.KindAuthFailure, workflow.Kind(err))
				require.Equal(t, int32(1), attempts.Load())
			},
		},
		{
			name: "Timer",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
				wf := func(ctx workflow.Context) (time.Duration, error) {
					start := workflow.Now(ctx)

					if err := workflow.Sleep(ctx, time.Millisecond*50, workflow.WithTimerName("poll")); err != nil {
						return 0, err
					}

					return workflow.Now(ctx).Sub(start), nil
				}
				register(t, ctx, w, []any{wf}, nil)

				instance := runWorkflow(t, ctx, c, wf)
				elapsed, err := client.GetWorkflowResult[time.Duration](ctx, c, instance, time.Second*10)
				require.NoError(t, err)

				// Logical time never runs ahead of the fire time
				require.GreaterOrEqual(t, elapsed, time.Millisecond*50)

				h, err := c.GetWorkflowInstanceHistory(ctx, instance)
				require.NoError(t, err)

				var fired int
				for _, e := range h {
					if e.Type == history.EventType_TimerFired {
						fired++
					}
				}
				require.Equal(t, 1, fired)
			},
		},
		{
			name: "ConcurrentInstances",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
				a := func(ctx context.Context, n int) (int, error) {
					return n + 1, nil
				}
				wf := func(ctx workflow.Context, n int) (int, error) {
					if err := workflow.Sleep(ctx, time.Millisecond*5); err != nil {
						return 0, err
					}

					return workflow.ExecuteActivity[int](ctx, workflow.DefaultActivityOptions, a, n).Get(ctx)
				}
				register(t, ctx, w, []any{wf}, []any{a})

				instances := make([]*core.WorkflowInstance, 0, 10)
				for i := 0; i < 10; i++ {
					instances = append(instances, runWorkflow(t, ctx, c, wf, i))
				}

				for i, instance := range instances {
					r, err := client.GetWorkflowResult[int](ctx, c, instance, time.Second*10)
					require.NoError(t, err)
					require.Equal(t, i+1, r)
				}
			},
		},
		{
			name: "WorkerRestart",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
				WorkerRestartTest(t, b, func(b TestBackend) TestBackend { return b })
			},
		},
	}

	tests = append(tests, e2eRemovalTests...)
	tests = append(tests, e2eStatsTests...)
	tests = append(tests, e2eDiagTests...)
	tests = append(tests, e2eTracingTests...)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := tracetest.NewInMemoryExporter()
			provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

			b := setup(backend.WithTracerProvider(provider))

			ctx, cancel := context.WithCancel(context.Background())

			c := client.New(b)
			w := worker.New(b, &testWorkerOptions)

			if tt.withSpans != nil {
				tt.withSpans(t, ctx, c, w, b, exporter)
			} else {
				tt.f(t, ctx, c, w, b)
			}

			cancel()
			if err := w.WaitForCompletion(); err != nil {
				t.Fatalf("worker did not stop: %v", err)
			}

			if teardown != nil {
				teardown(b)
			}
		})
	}
}

var testWorkerOptions = func() worker.Options {
	o := worker.DefaultOptions
	o.WorkflowPollingInterval = time.Millisecond * 5
	o.ActivityPollingInterval = time.Millisecond * 5
	return o
}()

func register(t *testing.T, ctx context.Context, w *worker.Worker, workflows []any, activities []any) {
	for _, wf := range workflows {
		require.NoError(t, w.RegisterWorkflow(wf))
	}

	for _, a := range activities {
		require.NoError(t, w.RegisterActivity(a))
	}

	err := w.Start(ctx)
	require.NoError(t, err)
}

func runWorkflow(t *testing.T, ctx context.Context, c *client.Client, wf any, inputs ...any) *core.WorkflowInstance {
	instance, err := c.CreateWorkflowInstance(ctx, client.WorkflowInstanceOptions{
		InstanceID: uuid.NewString(),
	}, wf, inputs...)
	require.NoError(t, err)

	return instance
}

func runWorkflowWithResult[T any](t *testing.T, ctx context.Context, c *client.Client, wf any, inputs ...any) (T, error) {
	instance := runWorkflow(t, ctx, c, wf, inputs...)
	return client.GetWorkflowResult[T](ctx, c, instance, time.Second*10)
}
