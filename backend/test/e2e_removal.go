package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/client"
	"github.com/voxflow/go-transcribe/worker"
	"github.com/voxflow/go-transcribe/workflow"
)

var e2eRemovalTests = []backendTest{
	{
		name: "RemoveWorkflowInstance_Removes",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
			wf := func(ctx workflow.Context) (bool, error) {
				return true, nil
			}
			register(t, ctx, w, []any{wf}, nil)

			instance := runWorkflow(t, ctx, c, wf)
			_, err := client.GetWorkflowResult[bool](ctx, c, instance, time.Second*10)
			require.NoError(t, err)

			require.NoError(t, c.RemoveWorkflowInstance(ctx, instance))

			_, err = c.GetWorkflowInstanceStatus(ctx, instance)
			require.ErrorIs(t, err, backend.ErrInstanceNotFound)
		},
	},
	{
		name: "RemoveWorkflowInstance_NotFinished",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
			wf := func(ctx workflow.Context) error {
				return workflow.Sleep(ctx, time.Hour)
			}
			register(t, ctx, w, []any{wf}, nil)

			instance := runWorkflow(t, ctx, c, wf)

			err := c.RemoveWorkflowInstance(ctx, instance)
			require.ErrorIs(t, err, backend.ErrInstanceNotFinished)
		},
	},
	{
		name: "RemoveWorkflowInstances_FinishedBefore",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
			wf := func(ctx workflow.Context) (bool, error) {
				return true, nil
			}
			register(t, ctx, w, []any{wf}, nil)

			workflowA := runWorkflow(t, ctx, c, wf)
			_, err := client.GetWorkflowResult[bool](ctx, c, workflowA, time.Second*10)
			require.NoError(t, err)

			time.Sleep(50 * time.Millisecond)
			before := time.Now()
			time.Sleep(50 * time.Millisecond)

			workflowB := runWorkflow(t, ctx, c, wf)
			_, err = client.GetWorkflowResult[bool](ctx, c, workflowB, time.Second*10)
			require.NoError(t, err)

			require.NoError(t, c.RemoveWorkflowInstances(ctx, backend.RemoveFinishedBefore(before)))

			_, err = c.GetWorkflowInstanceStatus(ctx, workflowA)
			require.ErrorIs(t, err, backend.ErrInstanceNotFound)

			_, err = c.GetWorkflowInstanceStatus(ctx, workflowB)
			require.NoError(t, err)
		},
	},
}
