package transcription

import (
	"context"
	"fmt"

	"github.com/voxflow/go-transcribe/activity"
	"github.com/voxflow/go-transcribe/internal/log"
	"github.com/voxflow/go-transcribe/workflow"
)

// Activities wraps a provider and a sink. Register a pointer to it with the worker, its
// methods are registered as activities named after the method.
type Activities struct {
	Provider Provider
	Sink     Sink
}

// StartJob submits the audio at the given location and returns the handle of the new job.
func (a *Activities) StartJob(ctx context.Context, audioURL string) (string, error) {
	job, err := a.Provider.SubmitJob(ctx, audioURL)
	if err != nil {
		return "", err
	}

	if job == nil || job.Handle == "" {
		return "", workflow.NewPermanentError(workflow.KindBadResponse, "provider did not return a job handle")
	}

	activity.Logger(ctx).Info("Started transcription job", log.AudioURLKey, audioURL, log.JobHandleKey, job.Handle)

	return job.Handle, nil
}

// PollStatus returns the transcript of the job, or an empty string if the job has not finished yet.
func (a *Activities) PollStatus(ctx context.Context, handle string) (string, error) {
	job, err := a.Provider.LookupJob(ctx, handle)
	if err != nil {
		return "", err
	}

	if job == nil {
		return "", workflow.NewPermanentError(workflow.KindBadResponse, "provider returned no job")
	}

	switch job.Status {
	case JobStatusSucceeded:
		if job.Text == "" {
			return "", workflow.NewPermanentError(workflow.KindBadResponse,
				fmt.Sprintf("job %s succeeded without a transcript", handle))
		}

		return job.Text, nil

	case JobStatusFailed:
		return "", workflow.NewPermanentError(workflow.KindJobFailed, fmt.Sprintf("job %s failed", handle))

	case JobStatusSubmitted, JobStatusRunning:
		activity.Logger(ctx).Debug("Transcription job not ready", log.JobHandleKey, handle, "status", job.Status)
		return "", nil

	default:
		return "", workflow.NewPermanentError(workflow.KindBadResponse,
			fmt.Sprintf("job %s has unknown status %q", handle, job.Status))
	}
}

// SaveResult hands the record to the sink. Sink errors are transient unless the sink
// classified them otherwise.
func (a *Activities) SaveResult(ctx context.Context, record Record) error {
	if err := a.Sink.Save(ctx, record); err != nil {
		if workflow.Kind(err) != "" {
			return err
		}

		return workflow.NewError(workflow.KindSink, fmt.Sprintf("saving transcription: %v", err))
	}

	return nil
}
