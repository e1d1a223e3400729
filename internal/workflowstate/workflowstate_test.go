package workflowstate

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/voxflow/go-transcribe/backend/converter"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/internal/command"
	"github.com/voxflow/go-transcribe/internal/sync"
	"github.com/voxflow/go-transcribe/internal/tracing"
)

func newState(logger *slog.Logger) *WfState {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return NewWorkflowState(
		core.NewWorkflowInstance("instance", "execution"),
		logger,
		tracing.NewWorkflowTracer(noop.NewTracerProvider().Tracer("test")),
		clock.NewMock(),
	)
}

func Test_ScheduleEventIDs_AreSequential(t *testing.T) {
	wfState := newState(nil)

	require.Equal(t, int64(1), wfState.GetNextScheduleEventID())
	require.Equal(t, int64(2), wfState.GetNextScheduleEventID())
	require.Equal(t, int64(3), wfState.GetNextScheduleEventID())
}

func Test_PendingFutures(t *testing.T) {
	wfState := newState(nil)

	f := sync.NewFuture[string]()
	id := wfState.GetNextScheduleEventID()
	wfState.TrackFuture(id, AsDecodingSettable(converter.DefaultConverter, "PollStatus", f))

	require.True(t, wfState.HasPendingFutures())
	require.Equal(t, map[int64]string{1: "PollStatus"}, wfState.PendingFutureNames())

	ds, ok := wfState.FutureByScheduleEventID(id)
	require.True(t, ok)

	r, _ := converter.DefaultConverter.To("hello world")
	require.NoError(t, ds.Set(r, nil))
	require.True(t, f.Ready())

	wfState.RemoveFuture(id)
	require.False(t, wfState.HasPendingFutures())
}

func Test_DecodingSettable_Error(t *testing.T) {
	f := sync.NewFuture[string]()
	ds := AsDecodingSettable(converter.DefaultConverter, "StartJob", f)

	require.NoError(t, ds.Set(nil, errors.New("unreachable")))
	require.True(t, f.Ready())
}

func Test_DecodingSettable_InvalidPayload(t *testing.T) {
	f := sync.NewFuture[int]()
	ds := AsDecodingSettable(converter.DefaultConverter, "StartJob", f)

	require.Error(t, ds.Set([]byte(`"not a number"`), nil))
	require.False(t, f.Ready())
}

func Test_CommandByScheduleEventID(t *testing.T) {
	wfState := newState(nil)

	cmd := command.NewScheduleActivityCommand(wfState.GetNextScheduleEventID(), "StartJob", nil, 1)
	wfState.AddCommand(cmd)

	require.Same(t, cmd, wfState.CommandByScheduleEventID(1))
	require.Nil(t, wfState.CommandByScheduleEventID(2))
}

func Test_ReplayLogger(t *testing.T) {
	var buf bytes.Buffer
	wfState := newState(slog.New(slog.NewTextHandler(&buf, nil)))

	wfState.SetReplaying(true)
	wfState.Logger().Info("during replay")
	require.Empty(t, buf.String())

	wfState.SetReplaying(false)
	wfState.Logger().With("k", "v").Info("after replay")
	require.Contains(t, buf.String(), "after replay")
	require.Contains(t, buf.String(), "transcribe.instance.id=instance")
	require.Contains(t, buf.String(), "k=v")
}
