package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type testTask struct {
	ID string
}

type testResult struct {
	Output string
}

type mockTaskWorker struct {
	mock.Mock
}

func (m *mockTaskWorker) Get(ctx context.Context) (*testTask, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*testTask), args.Error(1)
}

func (m *mockTaskWorker) Extend(ctx context.Context, task *testTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *mockTaskWorker) Execute(ctx context.Context, task *testTask) (*testResult, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*testResult), args.Error(1)
}

func (m *mockTaskWorker) Complete(ctx context.Context, result *testResult, task *testTask) error {
	args := m.Called(ctx, result, task)
	return args.Error(0)
}

func testOptions() *WorkerOptions {
	return &WorkerOptions{
		Pollers:          1,
		MaxParallelTasks: 2,
		PollingInterval:  time.Millisecond,
		MaxPollBackoff:   5 * time.Millisecond,
	}
}

func TestWorker_ProcessesTask(t *testing.T) {
	defer goleak.VerifyNone(t)

	tw := &mockTaskWorker{}
	task := &testTask{ID: "task-1"}
	result := &testResult{Output: "done"}

	completed := make(chan struct{})

	tw.On("Get", mock.Anything).Return(task, nil).Once()
	tw.On("Get", mock.Anything).Return(nil, nil)
	tw.On("Execute", mock.Anything, task).Return(result, nil).Once()
	tw.On("Complete", mock.Anything, result, task).Return(nil).Once().Run(func(args mock.Arguments) {
		close(completed)
	})

	w := NewWorker[testTask, testResult](slog.Default(), tw, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	select {
	case <-completed:
	case <-time.After(5 * time.Second):
		t.Fatal("task was not completed")
	}

	cancel()
	require.NoError(t, w.WaitForCompletion())

	tw.AssertExpectations(t)
}

func TestWorker_ExecuteErrorSkipsComplete(t *testing.T) {
	defer goleak.VerifyNone(t)

	tw := &mockTaskWorker{}
	task := &testTask{ID: "task-1"}

	executed := make(chan struct{})

	tw.On("Get", mock.Anything).Return(task, nil).Once()
	tw.On("Get", mock.Anything).Return(nil, nil)
	tw.On("Execute", mock.Anything, task).Return(nil, errors.New("sequence conflict")).Once().Run(func(args mock.Arguments) {
		close(executed)
	})

	w := NewWorker[testTask, testResult](slog.Default(), tw, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	<-executed

	cancel()
	require.NoError(t, w.WaitForCompletion())

	tw.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorker_BacksOffOnPollErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	tw := &mockTaskWorker{}

	var polls atomic.Int32
	tw.On("Get", mock.Anything).Return(nil, errors.New("backend unavailable")).Run(func(args mock.Arguments) {
		polls.Add(1)
	})

	w := NewWorker[testTask, testResult](slog.Default(), tw, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	require.Eventually(t, func() bool { return polls.Load() >= 3 }, 5*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, w.WaitForCompletion())
}

func TestWorker_Heartbeat(t *testing.T) {
	defer goleak.VerifyNone(t)

	tw := &mockTaskWorker{}
	task := &testTask{ID: "task-1"}
	result := &testResult{}

	extended := make(chan struct{}, 10)
	release := make(chan struct{})

	tw.On("Get", mock.Anything).Return(task, nil).Once()
	tw.On("Get", mock.Anything).Return(nil, nil)
	tw.On("Extend", mock.Anything, task).Return(nil).Run(func(args mock.Arguments) {
		select {
		case extended <- struct{}{}:
		default:
		}
	})
	tw.On("Execute", mock.Anything, task).Return(result, nil).Run(func(args mock.Arguments) {
		<-release
	})
	tw.On("Complete", mock.Anything, result, task).Return(nil)

	opts := testOptions()
	opts.HeartbeatInterval = time.Millisecond

	w := NewWorker[testTask, testResult](slog.Default(), tw, opts)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	select {
	case <-extended:
	case <-time.After(5 * time.Second):
		t.Fatal("task lock was not extended")
	}

	close(release)

	cancel()
	require.NoError(t, w.WaitForCompletion())
}

func TestWorker_LimitsParallelTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	tw := &mockTaskWorker{}

	var running, peak atomic.Int32
	var done sync.WaitGroup
	done.Add(3)

	for i := 0; i < 3; i++ {
		task := &testTask{ID: fmt.Sprintf("task-%d", i)}
		tw.On("Get", mock.Anything).Return(task, nil).Once()
		tw.On("Execute", mock.Anything, task).Return(&testResult{}, nil).Run(func(args mock.Arguments) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}

			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		})
		tw.On("Complete", mock.Anything, mock.Anything, task).Return(nil).Run(func(args mock.Arguments) {
			done.Done()
		})
	}
	tw.On("Get", mock.Anything).Return(nil, nil)

	opts := testOptions()
	opts.MaxParallelTasks = 1

	w := NewWorker[testTask, testResult](slog.Default(), tw, opts)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	done.Wait()

	cancel()
	require.NoError(t, w.WaitForCompletion())

	require.Equal(t, int32(1), peak.Load())
}

func TestWorker_WaitForCompletionWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := NewWorker[testTask, testResult](slog.Default(), &mockTaskWorker{}, testOptions())

	done := make(chan error, 1)
	go func() { done <- w.WaitForCompletion() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForCompletion blocked on a worker that was never started")
	}
}

func TestWorker_StartAndWaitTwice(t *testing.T) {
	defer goleak.VerifyNone(t)

	tw := &mockTaskWorker{}
	tw.On("Get", mock.Anything).Return(nil, nil)

	w := NewWorker[testTask, testResult](slog.Default(), tw, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	require.Error(t, w.Start(ctx))

	cancel()
	require.NoError(t, w.WaitForCompletion())
	require.NotPanics(t, func() {
		require.NoError(t, w.WaitForCompletion())
	})
}
