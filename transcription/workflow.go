package transcription

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/voxflow/go-transcribe/internal/log"
	"github.com/voxflow/go-transcribe/workflow"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultTimeout      = 2 * time.Minute
)

// Input is passed to Workflow. Zero durations fall back to the defaults.
type Input struct {
	AudioURL     string        `json:"audio_url"`
	PollInterval time.Duration `json:"poll_interval,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty"`

	// RetryAttempts is the number of attempts for every activity call. Transient failures are
	// retried with exponential backoff, 0 uses the workflow default.
	RetryAttempts int `json:"retry_attempts,omitempty"`
}

func (i Input) withDefaults() Input {
	if i.PollInterval <= 0 {
		i.PollInterval = DefaultPollInterval
	}

	if i.Timeout <= 0 {
		i.Timeout = DefaultTimeout
	}

	return i
}

func (i Input) activityOptions() workflow.ActivityOptions {
	opts := workflow.DefaultActivityOptions
	if i.RetryAttempts > 0 {
		opts.RetryOptions.MaxAttempts = i.RetryAttempts
	}

	return opts
}

// Workflow submits the audio for transcription, polls the job every PollInterval until a
// transcript is available and saves it. The instance times out if no transcript is available
// Timeout after the job was started.
func Workflow(ctx workflow.Context, input Input) (*Record, error) {
	input = input.withDefaults()
	opts := input.activityOptions()

	logger := workflow.Logger(ctx).With(log.AudioURLKey, input.AudioURL)
	enter(logger, StageStarted)

	// Only used to reference the activity methods
	var a *Activities

	enter(logger, StageAwaitingJobStart)

	handle, err := workflow.ExecuteActivity[string](ctx, opts, a.StartJob, input.AudioURL).Get(ctx)
	if err != nil {
		enter(logger, StageFailed, "error", err)
		return nil, fmt.Errorf("starting transcription job: %w", err)
	}

	logger = logger.With(log.JobHandleKey, handle)
	deadline := workflow.Now(ctx).Add(input.Timeout)

	for workflow.Now(ctx).Before(deadline) {
		enter(logger, StagePolling)

		text, err := workflow.ExecuteActivity[string](ctx, opts, a.PollStatus, handle).Get(ctx)
		if err != nil {
			enter(logger, StageFailed, "error", err)
			return nil, fmt.Errorf("polling transcription job: %w", err)
		}

		if text != "" {
			record := Record{
				InstanceID:  workflow.WorkflowInstance(ctx).InstanceID,
				AudioURL:    input.AudioURL,
				JobHandle:   handle,
				Text:        text,
				CompletedAt: workflow.Now(ctx),
			}

			if _, err := workflow.ExecuteActivity[any](ctx, opts, a.SaveResult, record).Get(ctx); err != nil {
				enter(logger, StageFailed, "error", err)
				return nil, fmt.Errorf("saving transcription: %w", err)
			}

			enter(logger, StageCompleted)
			return &record, nil
		}

		enter(logger, StageAwaitingTimer)

		if err := workflow.Sleep(ctx, input.PollInterval, workflow.WithTimerName("poll")); err != nil {
			return nil, err
		}
	}

	enter(logger, StageTimedOut)

	return nil, workflow.ErrTimeoutExceeded
}

func enter(logger *slog.Logger, stage Stage, args ...any) {
	logger.Debug("Workflow stage", append([]any{log.WorkflowStageKey, stage.String()}, args...)...)
}
