package fake

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxflow/go-transcribe/transcription"
	"github.com/voxflow/go-transcribe/workflow"
)

func Test_Provider_CompletesAfterPolls(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(WithPollsUntilDone(2))

	job, err := p.SubmitJob(ctx, "https://audio/1.wav")
	require.NoError(t, err)
	require.Equal(t, transcription.JobStatusSubmitted, job.Status)

	for i := 0; i < 2; i++ {
		j, err := p.LookupJob(ctx, job.Handle)
		require.NoError(t, err)
		require.Equal(t, transcription.JobStatusRunning, j.Status)
	}

	j, err := p.LookupJob(ctx, job.Handle)
	require.NoError(t, err)
	require.Equal(t, transcription.JobStatusSucceeded, j.Status)
	require.Equal(t, "transcript of https://audio/1.wav", j.Text)

	require.Equal(t, 1, p.Submissions())
	require.Equal(t, 3, p.Lookups(job.Handle))
}

func Test_Provider_UnknownJob(t *testing.T) {
	p := NewProvider()

	_, err := p.LookupJob(context.Background(), "missing")
	require.Error(t, err)
	require.False(t, workflow.CanRetry(err))
	require.Equal(t, workflow.KindBadResponse, workflow.Kind(err))
}

func Test_Provider_Errors(t *testing.T) {
	submitErr := errors.New("unreachable")
	p := NewProvider(WithSubmitError(submitErr))

	_, err := p.SubmitJob(context.Background(), "https://audio/1.wav")
	require.ErrorIs(t, err, submitErr)
	require.Equal(t, 1, p.Submissions())
}

func Test_Provider_FailingJobs(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(WithFailingJobs())

	job, err := p.SubmitJob(ctx, "https://audio/1.wav")
	require.NoError(t, err)

	j, err := p.LookupJob(ctx, job.Handle)
	require.NoError(t, err)
	require.Equal(t, transcription.JobStatusFailed, j.Status)
}
