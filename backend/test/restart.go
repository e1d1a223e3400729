package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/client"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/worker"
	"github.com/voxflow/go-transcribe/workflow"
)

func restartActivity(ctx context.Context, n int) (int, error) {
	return n + 1, nil
}

func restartWorkflow(ctx workflow.Context, n int) (int, error) {
	r, err := workflow.ExecuteActivity[int](ctx, workflow.DefaultActivityOptions, restartActivity, n).Get(ctx)
	if err != nil {
		return 0, err
	}

	if err := workflow.Sleep(ctx, time.Millisecond*200, workflow.WithTimerName("poll")); err != nil {
		return 0, err
	}

	return workflow.ExecuteActivity[int](ctx, workflow.DefaultActivityOptions, restartActivity, r).Get(ctx)
}

// WorkerRestartTest stops a worker while a timer of a running workflow is outstanding and lets a new
// worker finish the workflow. reopen returns the backend for the new worker, either b itself or a new
// handle on the same store.
func WorkerRestartTest(t *testing.T, b TestBackend, reopen func(b TestBackend) TestBackend) {
	ctx := context.Background()

	first := worker.New(b, &testWorkerOptions)
	firstCtx, stopFirst := context.WithCancel(ctx)
	register(t, firstCtx, first, []any{restartWorkflow}, []any{restartActivity})

	instance := runWorkflow(t, ctx, client.New(b), restartWorkflow, 1)

	require.Eventually(t, func() bool {
		futureEvents, err := b.GetFutureEvents(ctx)
		return err == nil && len(futureEvents) == 1
	}, time.Second*5, time.Millisecond*5)

	stopFirst()
	require.NoError(t, first.WaitForCompletion())

	b = reopen(b)
	c := client.New(b)

	s, err := c.GetWorkflowInstanceStatus(ctx, instance)
	require.NoError(t, err)
	require.Equal(t, core.WorkflowInstanceStatusRunning, s)

	second := worker.New(b, &testWorkerOptions)
	secondCtx, stopSecond := context.WithCancel(ctx)
	register(t, secondCtx, second, []any{restartWorkflow}, []any{restartActivity})

	defer func() {
		stopSecond()
		require.NoError(t, second.WaitForCompletion())
	}()

	r, err := client.GetWorkflowResult[int](ctx, c, instance, time.Second*10)
	require.NoError(t, err)
	require.Equal(t, 3, r)

	h, err := c.GetWorkflowInstanceHistory(ctx, instance)
	require.NoError(t, err)
	requireScheduledOnce(t, h)
}

// requireScheduledOnce checks the history is consistent and no activity or timer was scheduled twice
func requireScheduledOnce(t *testing.T, h []*history.Event) {
	t.Helper()

	require.NoError(t, history.Validate(h))

	scheduled := map[int64]int{}
	kinds := map[history.EventType]int{}
	for _, e := range h {
		if e.Type == history.EventType_ActivityScheduled || e.Type == history.EventType_TimerScheduled {
			scheduled[e.ScheduleEventID]++
			kinds[e.Type]++
		}
	}

	for id, n := range scheduled {
		require.Equal(t, 1, n, "schedule event id %d", id)
	}

	require.Equal(t, 2, kinds[history.EventType_ActivityScheduled])
	require.Equal(t, 1, kinds[history.EventType_TimerScheduled])
}
