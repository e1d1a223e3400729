// Package transcription models the audio transcription workflow: submit a job to a speech
// provider, poll it until a transcript is available or the timeout window has passed, then
// hand the record to a sink.
package transcription

import (
	"context"
	"time"
)

type JobStatus string

const (
	JobStatusSubmitted JobStatus = "Submitted"
	JobStatusRunning   JobStatus = "Running"
	JobStatusSucceeded JobStatus = "Succeeded"
	JobStatusFailed    JobStatus = "Failed"
)

// Job is the state of a transcription job as reported by a provider
type Job struct {
	// Handle identifies the job at the provider
	Handle string

	Status JobStatus

	// Text is the combined transcript, only set for succeeded jobs
	Text string
}

// Provider submits and looks up transcription jobs at a speech service. Errors should be
// classified with workflow.NewError or workflow.NewPermanentError so that the workflow can
// tell transient from fatal failures.
type Provider interface {
	SubmitJob(ctx context.Context, audioURL string) (*Job, error)
	LookupJob(ctx context.Context, handle string) (*Job, error)
}

// Record is the final result of a transcription
type Record struct {
	InstanceID  string    `json:"instance_id"`
	AudioURL    string    `json:"audio_url"`
	JobHandle   string    `json:"job_handle"`
	Text        string    `json:"text"`
	CompletedAt time.Time `json:"completed_at"`
}

// Sink persists finished transcription records.
type Sink interface {
	Save(ctx context.Context, record Record) error
}
