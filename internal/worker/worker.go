package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
)

// pollTimeout bounds a single Get call on the backend
const pollTimeout = 30 * time.Second

// TaskWorker knows how to fetch, run and complete one kind of task.
type TaskWorker[Task, Result any] interface {
	Get(context.Context) (*Task, error)
	Extend(context.Context, *Task) error
	Execute(context.Context, *Task) (*Result, error)
	Complete(context.Context, *Result, *Task) error
}

type WorkerOptions struct {
	Pollers int

	// MaxParallelTasks limits concurrently executing tasks, 0 means no limit
	MaxParallelTasks int

	// HeartbeatInterval between lock extensions while a task runs, 0 disables heartbeats
	HeartbeatInterval time.Duration

	PollingInterval time.Duration

	// MaxPollBackoff caps the delay between polls after the backend returned errors
	MaxPollBackoff time.Duration
}

// Worker runs pollers that fetch tasks and hands them to a bounded set of executors. Tasks
// are executed with a context detached from the one passed to Start, so a shutdown lets
// started tasks finish and complete.
type Worker[Task, Result any] struct {
	options *WorkerOptions
	tw      TaskWorker[Task, Result]
	logger  *slog.Logger

	tasks   chan *Task
	pollers sync.WaitGroup
	drained chan struct{}

	started   atomic.Bool
	closeOnce sync.Once
}

func NewWorker[Task, Result any](logger *slog.Logger, tw TaskWorker[Task, Result], options *WorkerOptions) *Worker[Task, Result] {
	return &Worker[Task, Result]{
		options: options,
		tw:      tw,
		logger:  logger,
		tasks:   make(chan *Task),
		drained: make(chan struct{}),
	}
}

func (w *Worker[Task, Result]) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("worker already started")
	}

	for i := 0; i < w.options.Pollers; i++ {
		w.pollers.Add(1)

		go func() {
			defer w.pollers.Done()
			w.poll(ctx)
		}()
	}

	go w.run()

	return nil
}

// WaitForCompletion blocks until the pollers stopped and every fetched task finished. It returns
// right away for a worker that was never started and may be called more than once.
func (w *Worker[Task, Result]) WaitForCompletion() error {
	if !w.started.Load() {
		return nil
	}

	w.pollers.Wait()

	w.closeOnce.Do(func() { close(w.tasks) })
	<-w.drained

	return nil
}

func (w *Worker[Task, Result]) poll(ctx context.Context) {
	ticker := time.NewTicker(w.options.PollingInterval)
	defer ticker.Stop()

	errBackoff := w.newPollBackoff()

	for {
		task, err := w.fetch(ctx)

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}

			delay := errBackoff.NextBackOff()
			w.logger.ErrorContext(ctx, "error polling task", "error", err, "retry_in", delay)

			if !sleep(ctx, delay) {
				return
			}

			continue

		case task != nil:
			errBackoff.Reset()

			select {
			case w.tasks <- task:
				// Look for more work right away
				continue
			case <-ctx.Done():
				// The task stays locked until its lock expires, then another worker picks it up
				return
			}
		}

		errBackoff.Reset()

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker[Task, Result]) newPollBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.options.PollingInterval
	b.MaxInterval = max(w.options.MaxPollBackoff, w.options.PollingInterval)
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}

// fetch returns nil without an error when no task became available in time
func (w *Worker[Task, Result]) fetch(ctx context.Context) (*Task, error) {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	task, err := w.tw.Get(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil, nil
	}

	return task, err
}

func (w *Worker[Task, Result]) run() {
	defer close(w.drained)

	var g errgroup.Group
	if w.options.MaxParallelTasks > 0 {
		g.SetLimit(w.options.MaxParallelTasks)
	}

	for task := range w.tasks {
		task := task
		g.Go(func() error {
			ctx := context.Background()

			if err := w.handle(ctx, task); err != nil {
				w.logger.ErrorContext(ctx, "error handling task", "error", err)
			}

			return nil
		})
	}

	_ = g.Wait()
}

func (w *Worker[Task, Result]) handle(ctx context.Context, task *Task) error {
	if w.options.HeartbeatInterval > 0 {
		hbCtx, stop := context.WithCancel(ctx)
		defer stop()

		go w.heartbeat(hbCtx, task)
	}

	result, err := w.tw.Execute(ctx, task)
	if err != nil {
		return fmt.Errorf("executing task: %w", err)
	}

	if err := w.tw.Complete(ctx, result, task); err != nil {
		return fmt.Errorf("completing task: %w", err)
	}

	return nil
}

func (w *Worker[Task, Result]) heartbeat(ctx context.Context, task *Task) {
	t := time.NewTicker(w.options.HeartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := w.tw.Extend(ctx, task); err != nil {
				w.logger.ErrorContext(ctx, "could not heartbeat task", "error", err)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
