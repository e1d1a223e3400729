package transcription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/go-transcribe/activitytester"
	"github.com/voxflow/go-transcribe/workflow"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) SubmitJob(ctx context.Context, audioURL string) (*Job, error) {
	args := m.Called(ctx, audioURL)
	job, _ := args.Get(0).(*Job)
	return job, args.Error(1)
}

func (m *mockProvider) LookupJob(ctx context.Context, handle string) (*Job, error) {
	args := m.Called(ctx, handle)
	job, _ := args.Get(0).(*Job)
	return job, args.Error(1)
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Save(ctx context.Context, record Record) error {
	return m.Called(ctx, record).Error(0)
}

func activityContext() context.Context {
	return activitytester.WithActivityTestState(context.Background(), "activity", "instance", nil)
}

func Test_Activities_StartJob(t *testing.T) {
	p := &mockProvider{}
	p.On("SubmitJob", mock.Anything, "https://audio").Return(&Job{Handle: "job-1", Status: JobStatusSubmitted}, nil)

	a := &Activities{Provider: p}

	handle, err := a.StartJob(activityContext(), "https://audio")
	require.NoError(t, err)
	require.Equal(t, "job-1", handle)
	p.AssertExpectations(t)
}

func Test_Activities_StartJob_MissingHandle(t *testing.T) {
	p := &mockProvider{}
	p.On("SubmitJob", mock.Anything, "https://audio").Return(&Job{}, nil)

	a := &Activities{Provider: p}

	_, err := a.StartJob(activityContext(), "https://audio")
	require.Error(t, err)
	require.Equal(t, workflow.KindBadResponse, workflow.Kind(err))
	require.False(t, workflow.CanRetry(err))
}

func Test_Activities_StartJob_Error(t *testing.T) {
	p := &mockProvider{}
	p.On("SubmitJob", mock.Anything, "https://audio").
		Return(nil, workflow.NewError(workflow.KindUnreachable, "timeout"))

	a := &Activities{Provider: p}

	_, err := a.StartJob(activityContext(), "https://audio")
	require.Equal(t, workflow.KindUnreachable, workflow.Kind(err))
	require.True(t, workflow.CanRetry(err))
}

func Test_Activities_PollStatus(t *testing.T) {
	tests := []struct {
		name  string
		job   *Job
		text  string
		kind  workflow.ErrorKind
		retry bool
	}{
		{"Submitted", &Job{Status: JobStatusSubmitted}, "", "", false},
		{"Running", &Job{Status: JobStatusRunning}, "", "", false},
		{"Succeeded", &Job{Status: JobStatusSucceeded, Text: "hello"}, "hello", "", false},
		{"SucceededWithoutText", &Job{Status: JobStatusSucceeded}, "", workflow.KindBadResponse, false},
		{"Failed", &Job{Status: JobStatusFailed}, "", workflow.KindJobFailed, false},
		{"NoJob", nil, "", workflow.KindBadResponse, false},
		{"UnknownStatus", &Job{Status: JobStatus("Paused")}, "", workflow.KindBadResponse, false},
		{"EmptyStatus", &Job{}, "", workflow.KindBadResponse, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProvider{}
			p.On("LookupJob", mock.Anything, "job-1").Return(tt.job, nil)

			a := &Activities{Provider: p}

			text, err := a.PollStatus(activityContext(), "job-1")
			if tt.kind != "" {
				require.Error(t, err)
				require.Equal(t, tt.kind, workflow.Kind(err))
				require.Equal(t, tt.retry, workflow.CanRetry(err))
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.text, text)
		})
	}
}

func Test_Activities_SaveResult(t *testing.T) {
	record := Record{
		InstanceID:  "instance",
		Text:        "hello",
		CompletedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	t.Run("Saved", func(t *testing.T) {
		s := &mockSink{}
		s.On("Save", mock.Anything, record).Return(nil).Once()

		a := &Activities{Sink: s}
		require.NoError(t, a.SaveResult(activityContext(), record))
		s.AssertExpectations(t)
	})

	t.Run("UnclassifiedErrorIsTransient", func(t *testing.T) {
		s := &mockSink{}
		s.On("Save", mock.Anything, record).Return(errors.New("connection reset"))

		a := &Activities{Sink: s}
		err := a.SaveResult(activityContext(), record)
		require.Equal(t, workflow.KindSink, workflow.Kind(err))
		require.True(t, workflow.CanRetry(err))
	})

	t.Run("ClassifiedErrorIsKept", func(t *testing.T) {
		s := &mockSink{}
		s.On("Save", mock.Anything, record).Return(workflow.NewPermanentError(workflow.KindAuthFailure, "denied"))

		a := &Activities{Sink: s}
		err := a.SaveResult(activityContext(), record)
		require.Equal(t, workflow.KindAuthFailure, workflow.Kind(err))
		require.False(t, workflow.CanRetry(err))
	})
}

func Test_Stage_String(t *testing.T) {
	require.Equal(t, "AwaitingTimer", StageAwaitingTimer.String())
	require.Equal(t, "TimedOut", StageTimedOut.String())
	require.Equal(t, "Unknown", Stage(42).String())
}
