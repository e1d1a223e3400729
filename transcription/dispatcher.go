package transcription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voxflow/go-transcribe/client"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/worker"
)

var ErrMissingAudioURL = errors.New("missing audio url")

// Settings are applied to every instance started by a Dispatcher
type Settings struct {
	PollInterval  time.Duration
	Timeout       time.Duration
	RetryAttempts int
}

// Dispatcher starts transcription workflow instances.
type Dispatcher struct {
	client   *client.Client
	settings Settings
}

func NewDispatcher(c *client.Client, settings Settings) *Dispatcher {
	return &Dispatcher{
		client:   c,
		settings: settings,
	}
}

// Start creates a new transcription instance for the given audio and returns its id.
func (d *Dispatcher) Start(ctx context.Context, audioURL string) (string, error) {
	return d.StartWithID(ctx, "", audioURL)
}

// StartWithID is like Start but uses the given instance id. An empty id generates one.
func (d *Dispatcher) StartWithID(ctx context.Context, instanceID, audioURL string) (string, error) {
	if audioURL == "" {
		return "", ErrMissingAudioURL
	}

	wfi, err := d.client.CreateWorkflowInstance(ctx, client.WorkflowInstanceOptions{
		InstanceID: instanceID,
	}, Workflow, Input{
		AudioURL:      audioURL,
		PollInterval:  d.settings.PollInterval,
		Timeout:       d.settings.Timeout,
		RetryAttempts: d.settings.RetryAttempts,
	})
	if err != nil {
		return "", fmt.Errorf("starting transcription: %w", err)
	}

	return wfi.InstanceID, nil
}

// Status returns the durable status of the given instance.
func (d *Dispatcher) Status(ctx context.Context, instanceID string) (core.WorkflowInstanceStatus, error) {
	return d.client.GetWorkflowInstanceStatus(ctx, core.NewWorkflowInstance(instanceID, ""))
}

// Register registers the workflow and its activities with the given worker.
func Register(w *worker.Worker, activities *Activities) error {
	if err := w.RegisterWorkflow(Workflow); err != nil {
		return fmt.Errorf("registering workflow: %w", err)
	}

	if err := w.RegisterActivity(activities); err != nil {
		return fmt.Errorf("registering activities: %w", err)
	}

	return nil
}
