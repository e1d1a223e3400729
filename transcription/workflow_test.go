package transcription_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/converter"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/registry"
	"github.com/voxflow/go-transcribe/tester"
	"github.com/voxflow/go-transcribe/transcription"
	"github.com/voxflow/go-transcribe/transcription/fake"
	"github.com/voxflow/go-transcribe/transcription/sink"
	"github.com/voxflow/go-transcribe/workflow"
	"github.com/voxflow/go-transcribe/workflow/executor"
)

var start = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

const audioURL = "https://blob/audio.wav?sas=1"

type setup struct {
	tester   tester.WorkflowTester[*transcription.Record]
	provider *fake.Provider
	sink     *sink.Memory
}

func newSetup(t *testing.T, opts ...fake.Option) *setup {
	t.Helper()

	wft := tester.NewWorkflowTester[*transcription.Record](transcription.Workflow, tester.WithStartTime(start))

	p := fake.NewProvider(opts...)
	s := sink.NewMemory()
	require.NoError(t, wft.Registry().RegisterActivity(&transcription.Activities{Provider: p, Sink: s}))

	return &setup{tester: wft, provider: p, sink: s}
}

func count(h []*history.Event, eventType history.EventType) int {
	var n int
	for _, e := range h {
		if e.Type == eventType {
			n++
		}
	}

	return n
}

func scheduled(h []*history.Event, name string) int {
	var n int
	for _, e := range h {
		if e.Type == history.EventType_ActivityScheduled && e.Attributes.(*history.ActivityScheduledAttributes).Name == name {
			n++
		}
	}

	return n
}

func Test_Workflow_HappyPath(t *testing.T) {
	s := newSetup(t, fake.WithPollsUntilDone(2))

	s.tester.Execute(context.Background(), transcription.Input{AudioURL: audioURL})

	require.Equal(t, core.WorkflowInstanceStatusCompleted, s.tester.WorkflowStatus())

	record, err := s.tester.WorkflowResult()
	require.NoError(t, err)
	require.Equal(t, audioURL, record.AudioURL)
	require.Equal(t, "transcript of "+audioURL, record.Text)
	require.Equal(t, start.Add(10*time.Second), record.CompletedAt)

	h := s.tester.History()
	require.NoError(t, history.Validate(h))
	require.Equal(t, 1, scheduled(h, "StartJob"))
	require.Equal(t, 3, scheduled(h, "PollStatus"))
	require.Equal(t, 1, scheduled(h, "SaveResult"))
	require.Equal(t, 2, count(h, history.EventType_TimerScheduled))
	require.Equal(t, 2, count(h, history.EventType_TimerFired))

	require.Equal(t, 1, s.provider.Submissions())
	require.Equal(t, 1, s.sink.Saves())

	saved, ok := s.sink.Get(record.InstanceID)
	require.True(t, ok)
	require.Equal(t, *record, saved)
}

func Test_Workflow_TimeoutBoundary(t *testing.T) {
	tests := []struct {
		name           string
		pollsUntilDone int
		status         core.WorkflowInstanceStatus
		polls          int
	}{
		// Polls happen at 0s, 5s, ... 115s. The check at 120s is not before the deadline anymore.
		{"LastPollSucceeds", 23, core.WorkflowInstanceStatusCompleted, 24},
		{"JustTooLate", 24, core.WorkflowInstanceStatusTimedOut, 24},
		{"NeverDone", 1000, core.WorkflowInstanceStatusTimedOut, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSetup(t, fake.WithPollsUntilDone(tt.pollsUntilDone))

			s.tester.Execute(context.Background(), transcription.Input{AudioURL: audioURL})

			require.Equal(t, tt.status, s.tester.WorkflowStatus())
			require.Equal(t, tt.polls, scheduled(s.tester.History(), "PollStatus"))

			if tt.status == core.WorkflowInstanceStatusTimedOut {
				_, err := s.tester.WorkflowResult()
				require.ErrorContains(t, err, workflow.ErrTimeoutExceeded.Error())
				require.Equal(t, start.Add(2*time.Minute), s.tester.Now())
				require.Equal(t, 0, s.sink.Saves())
			}
		})
	}
}

func Test_Workflow_CustomIntervals(t *testing.T) {
	s := newSetup(t, fake.WithPollsUntilDone(1000))

	s.tester.Execute(context.Background(), transcription.Input{
		AudioURL:     audioURL,
		PollInterval: 10 * time.Second,
		Timeout:      30 * time.Second,
	})

	require.Equal(t, core.WorkflowInstanceStatusTimedOut, s.tester.WorkflowStatus())
	require.Equal(t, 3, scheduled(s.tester.History(), "PollStatus"))
}

func Test_Workflow_FatalStartJob(t *testing.T) {
	s := newSetup(t, fake.WithSubmitError(workflow.NewPermanentError(workflow.KindAuthFailure, "invalid subscription key")))

	s.tester.Execute(context.Background(), transcription.Input{AudioURL: audioURL})

	require.Equal(t, core.WorkflowInstanceStatusFailed, s.tester.WorkflowStatus())

	_, err := s.tester.WorkflowResult()
	require.ErrorContains(t, err, "invalid subscription key")
	require.Equal(t, workflow.KindAuthFailure, workflow.Kind(err))

	h := s.tester.History()
	require.Equal(t, 1, s.provider.Submissions())
	require.Equal(t, 0, scheduled(h, "PollStatus"))
	require.Equal(t, 0, count(h, history.EventType_TimerScheduled))
	require.Equal(t, 0, s.sink.Saves())
}

func Test_Workflow_TransientStartJobRetried(t *testing.T) {
	s := newSetup(t, fake.WithSubmitError(workflow.NewError(workflow.KindUnreachable, "connection refused")))

	s.tester.Execute(context.Background(), transcription.Input{AudioURL: audioURL, RetryAttempts: 4})

	require.Equal(t, core.WorkflowInstanceStatusFailed, s.tester.WorkflowStatus())
	require.Equal(t, 4, s.provider.Submissions())

	_, err := s.tester.WorkflowResult()
	require.Equal(t, workflow.KindUnreachable, workflow.Kind(err))

	// Retries wait on durable timers
	require.Equal(t, 3, count(s.tester.History(), history.EventType_TimerFired))
}

func Test_Workflow_JobFailed(t *testing.T) {
	s := newSetup(t, fake.WithPollsUntilDone(1), fake.WithFailingJobs())

	s.tester.Execute(context.Background(), transcription.Input{AudioURL: audioURL})

	require.Equal(t, core.WorkflowInstanceStatusFailed, s.tester.WorkflowStatus())

	_, err := s.tester.WorkflowResult()
	require.Equal(t, workflow.KindJobFailed, workflow.Kind(err))
	require.Equal(t, 2, scheduled(s.tester.History(), "PollStatus"))
}

func Test_Workflow_MissingTranscript(t *testing.T) {
	s := newSetup(t, fake.WithTranscript(func(string) string { return "" }))

	s.tester.Execute(context.Background(), transcription.Input{AudioURL: audioURL})

	require.Equal(t, core.WorkflowInstanceStatusFailed, s.tester.WorkflowStatus())

	_, err := s.tester.WorkflowResult()
	require.Equal(t, workflow.KindBadResponse, workflow.Kind(err))
	require.Equal(t, 1, scheduled(s.tester.History(), "PollStatus"))
	require.Equal(t, 0, s.sink.Saves())
}

func Test_Workflow_Terminated(t *testing.T) {
	s := newSetup(t, fake.WithPollsUntilDone(1000))
	s.tester.TerminateAfter(12*time.Second, "cancelled by user")

	s.tester.Execute(context.Background(), transcription.Input{AudioURL: audioURL})

	require.Equal(t, core.WorkflowInstanceStatusTerminated, s.tester.WorkflowStatus())
	require.Equal(t, 3, scheduled(s.tester.History(), "PollStatus"))
}

type historyProvider struct {
	h []*history.Event
}

func (p *historyProvider) GetWorkflowInstanceHistory(ctx context.Context, instance *core.WorkflowInstance, lastSequenceID *int64) ([]*history.Event, error) {
	return p.h, nil
}

func incoming(t history.EventType) bool {
	switch t {
	case history.EventType_WorkflowExecutionStarted,
		history.EventType_WorkflowExecutionTerminated,
		history.EventType_ActivityCompleted,
		history.EventType_ActivityFailed,
		history.EventType_TimerFired:
		return true
	}

	return false
}

// Truncating the history at the start of any task and executing that task again has to
// produce the same events, and never schedules an action twice.
func Test_Workflow_ReplayAfterTruncation(t *testing.T) {
	s := newSetup(t, fake.WithPollsUntilDone(2))
	s.tester.Execute(context.Background(), transcription.Input{AudioURL: audioURL})
	require.Equal(t, core.WorkflowInstanceStatusCompleted, s.tester.WorkflowStatus())

	h := s.tester.History()

	r := registry.New()
	require.NoError(t, r.RegisterWorkflow(transcription.Workflow))

	instance := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString())

	var tasks int
	for k, e := range h {
		if e.Type != history.EventType_WorkflowTaskStarted {
			continue
		}

		tasks++

		end := len(h)
		for i := k + 1; i < len(h); i++ {
			if h[i].Type == history.EventType_WorkflowTaskStarted {
				end = i
				break
			}
		}

		j := k + 1
		newEvents := make([]*history.Event, 0)
		for j < end && incoming(h[j].Type) {
			ev := *h[j]
			ev.SequenceID = 0
			newEvents = append(newEvents, &ev)
			j++
		}

		var lastSequenceID int64
		if k > 0 {
			lastSequenceID = h[k-1].SequenceID
		}

		c := clock.NewMock()
		c.Set(e.Timestamp)

		ex, err := executor.NewExecutor(slog.Default(), noop.NewTracerProvider().Tracer("test"), r,
			converter.DefaultConverter, &historyProvider{h[:k]}, instance, c)
		require.NoError(t, err)

		result, err := ex.ExecuteTask(context.Background(), &backend.WorkflowTask{
			ID:                     uuid.NewString(),
			WorkflowInstance:       instance,
			WorkflowInstanceStatus: core.WorkflowInstanceStatusRunning,
			LastSequenceID:         lastSequenceID,
			NewEvents:              newEvents,
		})
		ex.Close()
		require.NoError(t, err)
		require.Nil(t, result.Corruption)

		require.Len(t, result.Executed, end-k, "task starting at %d", k)
		for i, executed := range result.Executed {
			require.Equal(t, h[k+i].Type, executed.Type)
			require.Equal(t, h[k+i].ScheduleEventID, executed.ScheduleEventID)
			require.Equal(t, h[k+i].SequenceID, executed.SequenceID)
		}

		full := append(append([]*history.Event{}, h[:k]...), result.Executed...)
		require.NoError(t, history.Validate(full))
	}

	// Started, job started, three polls, two timers, saved
	require.Equal(t, 8, tasks)
}

func Test_Workflow_HistoryCorruptionFailsInstance(t *testing.T) {
	s := newSetup(t, fake.WithPollsUntilDone(2))
	s.tester.Execute(context.Background(), transcription.Input{AudioURL: audioURL})

	h := s.tester.History()

	// Cut the history after the first poll was scheduled, then deliver a completion for an
	// action that was never scheduled
	var cut int
	for i, e := range h {
		if e.Type == history.EventType_ActivityScheduled && e.Attributes.(*history.ActivityScheduledAttributes).Name == "PollStatus" {
			cut = i + 1
			break
		}
	}
	require.NotZero(t, cut)

	r := registry.New()
	require.NoError(t, r.RegisterWorkflow(transcription.Workflow))
	instance := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString())

	ex, err := executor.NewExecutor(slog.Default(), noop.NewTracerProvider().Tracer("test"), r,
		converter.DefaultConverter, &historyProvider{h[:cut]}, instance, clock.New())
	require.NoError(t, err)
	defer ex.Close()

	result, err := ex.ExecuteTask(context.Background(), &backend.WorkflowTask{
		ID:                     uuid.NewString(),
		WorkflowInstance:       instance,
		WorkflowInstanceStatus: core.WorkflowInstanceStatusRunning,
		LastSequenceID:         h[cut-1].SequenceID,
		NewEvents: []*history.Event{
			history.NewPendingEvent(time.Now(), history.EventType_TimerFired,
				&history.TimerFiredAttributes{}, history.ScheduleEventID(99)),
		},
	})
	require.NoError(t, err)
	require.Equal(t, core.WorkflowInstanceStatusFailed, result.Status)
	require.Equal(t, executor.DecisionFail, result.Decision)

	var corruption *executor.HistoryCorruptionError
	require.True(t, errors.As(result.Corruption, &corruption))
}
