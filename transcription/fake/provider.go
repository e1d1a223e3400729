// Package fake provides an in-process speech provider for tests and local runs.
package fake

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"

	"github.com/voxflow/go-transcribe/transcription"
	"github.com/voxflow/go-transcribe/workflow"
)

type job struct {
	audioURL string
	lookups  int
}

// Provider completes every job after a fixed number of lookups.
type Provider struct {
	mu   deadlock.Mutex
	jobs map[string]*job

	submissions int

	pollsUntilDone int
	transcript     func(audioURL string) string
	submitErr      error
	lookupErr      error
	failJobs       bool
}

var _ transcription.Provider = (*Provider)(nil)

type Option func(*Provider)

// WithPollsUntilDone sets the number of lookups that report the job as running before it succeeds.
func WithPollsUntilDone(n int) Option {
	return func(p *Provider) {
		p.pollsUntilDone = n
	}
}

// WithTranscript sets the function producing the transcript for an audio location. Returning an
// empty string simulates a finished job without a transcript.
func WithTranscript(fn func(audioURL string) string) Option {
	return func(p *Provider) {
		p.transcript = fn
	}
}

// WithSubmitError makes every submission fail with the given error.
func WithSubmitError(err error) Option {
	return func(p *Provider) {
		p.submitErr = err
	}
}

// WithLookupError makes every lookup fail with the given error.
func WithLookupError(err error) Option {
	return func(p *Provider) {
		p.lookupErr = err
	}
}

// WithFailingJobs reports every job as failed once it is done.
func WithFailingJobs() Option {
	return func(p *Provider) {
		p.failJobs = true
	}
}

func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		jobs: make(map[string]*job),
		transcript: func(audioURL string) string {
			return "transcript of " + audioURL
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Provider) SubmitJob(ctx context.Context, audioURL string) (*transcription.Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.submissions++

	if p.submitErr != nil {
		return nil, p.submitErr
	}

	handle := uuid.NewString()
	p.jobs[handle] = &job{audioURL: audioURL}

	return &transcription.Job{
		Handle: handle,
		Status: transcription.JobStatusSubmitted,
	}, nil
}

func (p *Provider) LookupJob(ctx context.Context, handle string) (*transcription.Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lookupErr != nil {
		return nil, p.lookupErr
	}

	j, ok := p.jobs[handle]
	if !ok {
		return nil, workflow.NewPermanentError(workflow.KindBadResponse, fmt.Sprintf("unknown job %s", handle))
	}

	j.lookups++

	if j.lookups <= p.pollsUntilDone {
		return &transcription.Job{Handle: handle, Status: transcription.JobStatusRunning}, nil
	}

	if p.failJobs {
		return &transcription.Job{Handle: handle, Status: transcription.JobStatusFailed}, nil
	}

	return &transcription.Job{
		Handle: handle,
		Status: transcription.JobStatusSucceeded,
		Text:   p.transcript(j.audioURL),
	}, nil
}

// Submissions returns how many jobs were submitted, including failed submissions.
func (p *Provider) Submissions() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.submissions
}

// Lookups returns how often the given job was looked up.
func (p *Provider) Lookups(handle string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if j, ok := p.jobs[handle]; ok {
		return j.lookups
	}

	return 0
}
