package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voxflow/go-transcribe/client"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/worker"
	"github.com/voxflow/go-transcribe/workflow"
)

var e2eStatsTests = []backendTest{
	{
		name: "Stats_ActiveInstance",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
			activityRunning := make(chan bool, 1)
			activityBlocked := make(chan bool, 1)

			a := func(ctx context.Context) error {
				activityRunning <- true
				<-activityBlocked

				return nil
			}
			wf := func(ctx workflow.Context) (bool, error) {
				_, err := workflow.ExecuteActivity[any](ctx, workflow.DefaultActivityOptions, a).Get(ctx)
				return err == nil, err
			}

			require.NoError(t, w.RegisterWorkflow(wf))
			require.NoError(t, w.RegisterActivity(a))

			s, err := b.GetStats(ctx)
			require.NoError(t, err)
			require.Equal(t, int64(0), s.ActiveWorkflowInstances)
			require.Equal(t, int64(0), s.PendingWorkflowTasks)
			require.Equal(t, int64(0), s.PendingActivities)

			wfi := runWorkflow(t, ctx, c, wf)

			s, err = b.GetStats(ctx)
			require.NoError(t, err)
			require.Equal(t, int64(1), s.ActiveWorkflowInstances)
			require.Equal(t, int64(1), s.PendingWorkflowTasks)
			require.Equal(t, int64(0), s.PendingActivities)

			// Start worker
			require.NoError(t, w.Start(ctx))

			// Wait until the activity is running
			<-activityRunning

			s, err = b.GetStats(ctx)
			require.NoError(t, err)
			require.Equal(t, int64(1), s.ActiveWorkflowInstances)
			require.Equal(t, int64(0), s.PendingWorkflowTasks)

			// Let the activity and the workflow finish
			activityBlocked <- true

			status, err := c.WaitForWorkflowInstance(ctx, wfi, time.Second*10)
			require.NoError(t, err)
			require.Equal(t, core.WorkflowInstanceStatusCompleted, status)

			s, err = b.GetStats(ctx)
			require.NoError(t, err)
			require.Equal(t, int64(0), s.ActiveWorkflowInstances)
			require.Equal(t, int64(0), s.PendingActivities)
		},
	},
}
