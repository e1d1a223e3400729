package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/voxflow/go-transcribe/backend"
	internal "github.com/voxflow/go-transcribe/internal/worker"
	"github.com/voxflow/go-transcribe/registry"
	"github.com/voxflow/go-transcribe/workflow"
	"github.com/voxflow/go-transcribe/workflow/executor"
	"github.com/voxflow/go-transcribe/workflow/executor/cache"
)

type Worker struct {
	backend backend.Backend

	registry *registry.Registry

	workers []worker

	historyCache interface {
		StartEviction(ctx context.Context)
	}

	evictionDone chan struct{}
}

type worker interface {
	Start(context.Context) error
	WaitForCompletion() error
}

// New creates a worker that processes workflows and activities.
func New(b backend.Backend, options *Options) *Worker {
	if options == nil {
		options = &DefaultOptions
	}

	w := &Worker{
		backend:  b,
		registry: registry.New(),
	}

	var historyProvider executor.WorkflowHistoryProvider = b
	var onFinished func(*backend.WorkflowTask)

	if options.HistoryCacheSize > 0 {
		hc := cache.NewHistoryCache(b.Metrics(), b, options.HistoryCacheSize, options.HistoryCacheTTL)
		historyProvider = hc
		onFinished = func(t *backend.WorkflowTask) {
			hc.Evict(t.WorkflowInstance)
		}
		w.historyCache = hc
	}

	workflowWorker := internal.NewWorkflowWorker(b, w.registry, internal.WorkflowWorkerOptions{
		WorkerOptions: internal.WorkerOptions{
			Pollers:           options.WorkflowPollers,
			PollingInterval:   options.WorkflowPollingInterval,
			MaxParallelTasks:  options.MaxParallelWorkflowTasks,
			HeartbeatInterval: options.WorkflowHeartbeatInterval,
			MaxPollBackoff:    options.MaxPollBackoff,
		},
		HistoryProvider: historyProvider,
		OnFinished:      onFinished,
	})

	activityWorker := internal.NewActivityWorker(b, w.registry, internal.WorkerOptions{
		Pollers:           options.ActivityPollers,
		PollingInterval:   options.ActivityPollingInterval,
		MaxParallelTasks:  options.MaxParallelActivityTasks,
		HeartbeatInterval: options.ActivityHeartbeatInterval,
		MaxPollBackoff:    options.MaxPollBackoff,
	})

	w.workers = []worker{workflowWorker, activityWorker}

	return w
}

// Start starts the worker.
//
// To stop the worker, cancel the context passed to Start. To wait for completion of the active
// tasks, call `WaitForCompletion`.
func (w *Worker) Start(ctx context.Context) error {
	if w.historyCache != nil {
		w.evictionDone = make(chan struct{})

		go func() {
			defer close(w.evictionDone)
			w.historyCache.StartEviction(ctx)
		}()
	}

	for _, worker := range w.workers {
		if err := worker.Start(ctx); err != nil {
			return fmt.Errorf("starting worker: %w", err)
		}
	}

	return nil
}

// WaitForCompletion waits for all active tasks to complete.
func (w *Worker) WaitForCompletion() error {
	var g errgroup.Group

	for _, worker := range w.workers {
		worker := worker
		g.Go(func() error {
			if err := worker.WaitForCompletion(); err != nil {
				return fmt.Errorf("waiting for worker completion: %w", err)
			}

			return nil
		})
	}

	err := g.Wait()

	if w.evictionDone != nil {
		<-w.evictionDone
	}

	return err
}

// RegisterWorkflow registers a workflow with the worker's registry.
func (w *Worker) RegisterWorkflow(wf workflow.Workflow, opts ...registry.RegisterOption) error {
	return w.registry.RegisterWorkflow(wf, opts...)
}

// RegisterActivity registers an activity with the worker's registry.
func (w *Worker) RegisterActivity(a workflow.Activity, opts ...registry.RegisterOption) error {
	return w.registry.RegisterActivity(a, opts...)
}
