package client

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/converter"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/core"
	mi "github.com/voxflow/go-transcribe/internal/metrics"
	"github.com/voxflow/go-transcribe/internal/workflowerrors"
	"github.com/voxflow/go-transcribe/workflow"
)

func newMockBackend(t *testing.T) *backend.MockBackend {
	b := backend.NewMockBackend(t)
	b.On("Tracer").Return(noop.NewTracerProvider().Tracer("test")).Maybe()
	b.On("Options").Return(&backend.Options{
		Logger:    slog.Default(),
		Converter: converter.DefaultConverter,
		Clock:     clock.New(),
	}).Maybe()

	return b
}

func finishedHistory(attrs *history.ExecutionFinishedAttributes) []*history.Event {
	return []*history.Event{
		history.NewHistoryEvent(1, time.Now(), history.EventType_WorkflowTaskStarted, &history.WorkflowTaskStartedAttributes{}),
		history.NewHistoryEvent(2, time.Now(), history.EventType_WorkflowExecutionStarted, &history.ExecutionStartedAttributes{}),
		history.NewHistoryEvent(3, time.Now(), history.EventType_WorkflowExecutionFinished, attrs),
	}
}

func Test_Client_CreateWorkflowInstance_ParamMismatch(t *testing.T) {
	wf := func(workflow.Context, int) (int, error) {
		return 0, nil
	}

	b := backend.NewMockBackend(t)
	c := &Client{
		backend: b,
		clock:   clock.New(),
	}

	result, err := c.CreateWorkflowInstance(context.Background(), WorkflowInstanceOptions{
		InstanceID: "id",
	}, wf, "foo")
	require.Nil(t, result)
	require.EqualError(t, err, "mismatched argument type: expected int, got string")
}

func Test_Client_CreateWorkflowInstance(t *testing.T) {
	wf := func(workflow.Context, string) (string, error) {
		return "", nil
	}

	b := newMockBackend(t)
	b.On("Metrics").Return(mi.NewNoopMetricsClient())
	b.On("CreateWorkflowInstance", mock.Anything, mock.MatchedBy(func(wfi *core.WorkflowInstance) bool {
		return wfi.InstanceID == "job-1" && wfi.ExecutionID != ""
	}), mock.MatchedBy(func(event *history.Event) bool {
		a, ok := event.Attributes.(*history.ExecutionStartedAttributes)
		return ok && event.Type == history.EventType_WorkflowExecutionStarted && event.SequenceID == 0 && len(a.Inputs) == 1
	})).Return(nil)

	c := New(b)

	wfi, err := c.CreateWorkflowInstance(context.Background(), WorkflowInstanceOptions{InstanceID: "job-1"}, wf, "audio")
	require.NoError(t, err)
	require.Equal(t, "job-1", wfi.InstanceID)
}

func Test_Client_CreateWorkflowInstance_AlreadyExists(t *testing.T) {
	b := newMockBackend(t)
	b.On("CreateWorkflowInstance", mock.Anything, mock.Anything, mock.Anything).Return(backend.ErrInstanceAlreadyExists)

	c := New(b)

	_, err := c.CreateWorkflowInstance(context.Background(), WorkflowInstanceOptions{InstanceID: "job-1"}, "Transcribe")
	require.ErrorIs(t, err, backend.ErrInstanceAlreadyExists)
}

func Test_Client_GetWorkflowResultTimeout(t *testing.T) {
	instance := core.NewWorkflowInstance(uuid.NewString(), "test")

	b := newMockBackend(t)
	b.On("GetWorkflowInstanceStatus", mock.Anything, instance).Return(core.WorkflowInstanceStatusRunning, nil)

	c := New(b)

	result, err := GetWorkflowResult[int](context.Background(), c, instance, time.Microsecond*1)
	require.Zero(t, result)
	require.EqualError(t, err, "workflow did not finish in time: workflow did not finish in specified timeout")
}

func Test_Client_GetWorkflowResultSuccess(t *testing.T) {
	instance := core.NewWorkflowInstance(uuid.NewString(), "test")

	r, _ := converter.DefaultConverter.To(42)

	b := newMockBackend(t)
	b.On("GetWorkflowInstanceStatus", mock.Anything, instance).Return(core.WorkflowInstanceStatusRunning, nil).Once()
	b.On("GetWorkflowInstanceStatus", mock.Anything, instance).Return(core.WorkflowInstanceStatusCompleted, nil)
	b.On("GetWorkflowInstanceHistory", mock.Anything, instance, (*int64)(nil)).Return(finishedHistory(&history.ExecutionFinishedAttributes{
		Status: core.WorkflowInstanceStatusCompleted,
		Result: r,
	}), nil)

	c := New(b)

	result, err := GetWorkflowResult[int](context.Background(), c, instance, 0)
	require.NoError(t, err)
	require.Equal(t, 42, result)
}

func Test_Client_GetWorkflowResultTerminalStatuses(t *testing.T) {
	tests := []struct {
		name    string
		history []*history.Event
		status  core.WorkflowInstanceStatus
		check   func(t *testing.T, err error)
	}{
		{
			name:   "failed",
			status: core.WorkflowInstanceStatusFailed,
			history: finishedHistory(&history.ExecutionFinishedAttributes{
				Status: core.WorkflowInstanceStatusFailed,
				Error:  workflowerrors.New(workflowerrors.KindJobFailed, "job rejected", true),
			}),
			check: func(t *testing.T, err error) {
				require.EqualError(t, err, "job rejected")
				require.Equal(t, workflowerrors.KindJobFailed, workflowerrors.KindOf(err))
			},
		},
		{
			name:   "timed out",
			status: core.WorkflowInstanceStatusTimedOut,
			history: finishedHistory(&history.ExecutionFinishedAttributes{
				Status: core.WorkflowInstanceStatusTimedOut,
				Error:  workflowerrors.FromError(workflow.ErrTimeoutExceeded),
			}),
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrWorkflowTimedOut)
			},
		},
		{
			name:   "terminated",
			status: core.WorkflowInstanceStatusTerminated,
			history: []*history.Event{
				history.NewHistoryEvent(1, time.Now(), history.EventType_WorkflowTaskStarted, &history.WorkflowTaskStartedAttributes{}),
				history.NewHistoryEvent(2, time.Now(), history.EventType_WorkflowExecutionStarted, &history.ExecutionStartedAttributes{}),
				history.NewHistoryEvent(3, time.Now(), history.EventType_WorkflowExecutionTerminated, &history.ExecutionTerminatedAttributes{Reason: "user"}),
			},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrWorkflowTerminated)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instance := core.NewWorkflowInstance(uuid.NewString(), "test")

			b := newMockBackend(t)
			b.On("GetWorkflowInstanceStatus", mock.Anything, instance).Return(tt.status, nil)
			b.On("GetWorkflowInstanceHistory", mock.Anything, instance, (*int64)(nil)).Return(tt.history, nil)

			c := New(b)

			result, err := GetWorkflowResult[string](context.Background(), c, instance, 0)
			require.Zero(t, result)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func Test_Client_WaitForWorkflowInstance_MockClock(t *testing.T) {
	instance := core.NewWorkflowInstance(uuid.NewString(), "test")

	mockClock := clock.NewMock()

	b := newMockBackend(t)
	b.On("GetWorkflowInstanceStatus", mock.Anything, instance).Return(core.WorkflowInstanceStatusRunning, nil)

	c := &Client{
		backend: b,
		clock:   mockClock,
	}

	stop := make(chan struct{})
	defer close(stop)

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(time.Millisecond):
				mockClock.Add(time.Second)
			}
		}
	}()

	status, err := c.WaitForWorkflowInstance(context.Background(), instance, time.Second*10)
	require.ErrorIs(t, err, ErrWaitTimeout)
	require.Equal(t, core.WorkflowInstanceStatusRunning, status)
}
