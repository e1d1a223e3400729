package transcription_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/voxflow/go-transcribe/backend/memory"
	"github.com/voxflow/go-transcribe/client"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/transcription"
	"github.com/voxflow/go-transcribe/transcription/fake"
	"github.com/voxflow/go-transcribe/transcription/sink"
	"github.com/voxflow/go-transcribe/worker"
)

type env struct {
	client     *client.Client
	dispatcher *transcription.Dispatcher
	provider   *fake.Provider
	sink       *sink.Memory
}

func newEnv(t *testing.T, opts ...fake.Option) *env {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	b := memory.NewMemoryBackend()
	c := client.New(b)

	wo := worker.DefaultOptions
	wo.WorkflowPollingInterval = 5 * time.Millisecond
	wo.ActivityPollingInterval = 5 * time.Millisecond
	w := worker.New(b, &wo)

	p := fake.NewProvider(opts...)
	s := sink.NewMemory()
	require.NoError(t, transcription.Register(w, &transcription.Activities{Provider: p, Sink: s}))
	require.NoError(t, w.Start(ctx))

	t.Cleanup(func() {
		cancel()
		require.NoError(t, w.WaitForCompletion())
		b.Close()
	})

	return &env{
		client: c,
		dispatcher: transcription.NewDispatcher(c, transcription.Settings{
			PollInterval: 10 * time.Millisecond,
			Timeout:      5 * time.Second,
		}),
		provider: p,
		sink:     s,
	}
}

func Test_EndToEnd_ConcurrentInstances(t *testing.T) {
	e := newEnv(t, fake.WithPollsUntilDone(2))
	ctx := context.Background()

	const n = 10

	ids := make([]string, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			id, err := e.dispatcher.Start(gctx, fmt.Sprintf("https://audio/%d.wav", i))
			ids[i] = id
			return err
		})
	}
	require.NoError(t, g.Wait())

	for i, id := range ids {
		record, err := client.GetWorkflowResult[*transcription.Record](ctx, e.client, core.NewWorkflowInstance(id, ""), 10*time.Second)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("transcript of https://audio/%d.wav", i), record.Text)

		status, err := e.dispatcher.Status(ctx, id)
		require.NoError(t, err)
		require.Equal(t, core.WorkflowInstanceStatusCompleted, status)
	}

	require.Len(t, e.sink.Records(), n)
	require.Equal(t, n, e.provider.Submissions())
	require.Equal(t, n, e.sink.Saves())
}

func Test_EndToEnd_TimedOut(t *testing.T) {
	e := newEnv(t, fake.WithPollsUntilDone(1000))
	ctx := context.Background()

	wfi, err := e.client.CreateWorkflowInstance(ctx, client.WorkflowInstanceOptions{}, transcription.Workflow, transcription.Input{
		AudioURL:     "https://audio/slow.wav",
		PollInterval: 10 * time.Millisecond,
		Timeout:      50 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = client.GetWorkflowResult[*transcription.Record](ctx, e.client, wfi, 10*time.Second)
	require.ErrorIs(t, err, client.ErrWorkflowTimedOut)

	status, err := e.client.GetWorkflowInstanceStatus(ctx, wfi)
	require.NoError(t, err)
	require.Equal(t, core.WorkflowInstanceStatusTimedOut, status)
	require.Equal(t, 0, e.sink.Saves())
}

func Test_Dispatcher_MissingAudioURL(t *testing.T) {
	e := newEnv(t)

	_, err := e.dispatcher.Start(context.Background(), "")
	require.ErrorIs(t, err, transcription.ErrMissingAudioURL)
}

func Test_Handler(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(transcription.NewHandler(e.dispatcher, nil))
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{"audio_url": "https://audio/http.wav"})
	resp, err := http.Post(srv.URL+"/transcriptions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started struct {
		InstanceID string `json:"instance_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	require.NotEmpty(t, started.InstanceID)

	_, err = e.client.WaitForWorkflowInstance(context.Background(), core.NewWorkflowInstance(started.InstanceID, ""), 10*time.Second)
	require.NoError(t, err)

	statusResp, err := http.Get(srv.URL + "/transcriptions/" + started.InstanceID)
	require.NoError(t, err)
	defer statusResp.Body.Close()
	require.Equal(t, http.StatusOK, statusResp.StatusCode)

	var status struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&status))
	require.Equal(t, core.WorkflowInstanceStatusCompleted.String(), status.Status)

	missing, err := http.Get(srv.URL + "/transcriptions/unknown")
	require.NoError(t, err)
	missing.Body.Close()
	require.Equal(t, http.StatusNotFound, missing.StatusCode)

	bad, err := http.Post(srv.URL+"/transcriptions", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	bad.Body.Close()
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)
}
