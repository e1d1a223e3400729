package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxflow/go-transcribe/activitytester"
	"github.com/voxflow/go-transcribe/transcription"
	"github.com/voxflow/go-transcribe/workflow"
)

type fakeService struct {
	status     string
	files      string
	details    string
	statusCode int

	// omitStatus leaves the status field out of the job resource
	omitStatus bool

	created *createRequest
}

func newServer(t *testing.T, s *fakeService) *httptest.Server {
	mux := http.NewServeMux()
	var srv *httptest.Server

	check := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get(keyHeader) != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return false
		}

		if s.statusCode != 0 {
			w.WriteHeader(s.statusCode)
			return false
		}

		return true
	}

	mux.HandleFunc("/speechtotext/v3.1/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		if !check(w, r) {
			return
		}

		require.Equal(t, http.MethodPost, r.Method)

		var req createRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		s.created = &req

		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"self": "%s/speechtotext/v3.1/transcriptions/1", "status": "NotStarted"}`, srv.URL)
	})

	mux.HandleFunc("/speechtotext/v3.1/transcriptions/1", func(w http.ResponseWriter, r *http.Request) {
		if !check(w, r) {
			return
		}

		if s.omitStatus {
			fmt.Fprintf(w, `{"self": "%s/speechtotext/v3.1/transcriptions/1", "links": {"files": "%s/files"}}`, srv.URL, srv.URL)
			return
		}

		fmt.Fprintf(w, `{"self": "%s/speechtotext/v3.1/transcriptions/1", "status": %q, "links": {"files": "%s/files"}}`,
			srv.URL, s.status, srv.URL)
	})

	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		if !check(w, r) {
			return
		}

		fmt.Fprintf(w, s.files, srv.URL)
	})

	mux.HandleFunc("/content", func(w http.ResponseWriter, r *http.Request) {
		if !check(w, r) {
			return
		}

		fmt.Fprint(w, s.details)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

const (
	filesWithTranscription = `{"values": [
		{"kind": "TranscriptionReport", "links": {"contentUrl": "%[1]s/report"}},
		{"kind": "Transcription", "links": {"contentUrl": "%[1]s/content"}}
	]}`
	filesWithoutTranscription = `{"values": [{"kind": "TranscriptionReport", "links": {"contentUrl": "%[1]s/report"}}]}`
)

func newClient(t *testing.T, srv *httptest.Server, key string) *Client {
	c, err := New(Options{
		Endpoint: srv.URL,
		Key:      key,
	})
	require.NoError(t, err)

	return c
}

func Test_SubmitJob(t *testing.T) {
	s := &fakeService{}
	srv := newServer(t, s)
	c := newClient(t, srv, "secret")

	job, err := c.SubmitJob(context.Background(), "https://blob/audio.wav?sas")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/speechtotext/v3.1/transcriptions/1", job.Handle)
	require.Equal(t, transcription.JobStatusSubmitted, job.Status)

	require.Equal(t, []string{"https://blob/audio.wav?sas"}, s.created.ContentURLs)
	require.Equal(t, DefaultLocale, s.created.Locale)
	require.Equal(t, DefaultDisplayName, s.created.DisplayName)
}

func Test_LookupJob(t *testing.T) {
	tests := []struct {
		name    string
		service *fakeService
		key     string
		status  transcription.JobStatus
		text    string
		kind    workflow.ErrorKind
		retry   bool
	}{
		{
			name:    "Running",
			service: &fakeService{status: "Running"},
			status:  transcription.JobStatusRunning,
		},
		{
			name:    "NotStarted",
			service: &fakeService{status: "NotStarted"},
			status:  transcription.JobStatusSubmitted,
		},
		{
			name:    "Failed",
			service: &fakeService{status: "Failed"},
			status:  transcription.JobStatusFailed,
		},
		{
			name:    "MissingStatus",
			service: &fakeService{omitStatus: true},
			kind:    workflow.KindBadResponse,
		},
		{
			name:    "EmptyStatus",
			service: &fakeService{status: ""},
			kind:    workflow.KindBadResponse,
		},
		{
			name:    "UnknownStatus",
			service: &fakeService{status: "Paused"},
			kind:    workflow.KindBadResponse,
		},
		{
			name: "Succeeded",
			service: &fakeService{
				status:  "Succeeded",
				files:   filesWithTranscription,
				details: `{"combinedRecognizedPhrases": [{"display": "Hello world."}]}`,
			},
			status: transcription.JobStatusSucceeded,
			text:   "Hello world.",
		},
		{
			name: "SucceededWithoutTranscriptionFile",
			service: &fakeService{
				status: "Succeeded",
				files:  filesWithoutTranscription,
			},
			kind: workflow.KindBadResponse,
		},
		{
			name: "SucceededWithoutPhrases",
			service: &fakeService{
				status:  "Succeeded",
				files:   filesWithTranscription,
				details: `{"combinedRecognizedPhrases": []}`,
			},
			kind: workflow.KindBadResponse,
		},
		{
			name: "UndecodableResponse",
			service: &fakeService{
				status:  "Succeeded",
				files:   filesWithTranscription,
				details: `not json`,
			},
			kind: workflow.KindBadResponse,
		},
		{
			name:    "Unauthorized",
			service: &fakeService{status: "Running"},
			key:     "wrong",
			kind:    workflow.KindAuthFailure,
		},
		{
			name:    "Throttled",
			service: &fakeService{statusCode: http.StatusTooManyRequests},
			kind:    workflow.KindUnreachable,
			retry:   true,
		},
		{
			name:    "ServerError",
			service: &fakeService{statusCode: http.StatusBadGateway},
			kind:    workflow.KindUnreachable,
			retry:   true,
		},
		{
			name:    "NotFound",
			service: &fakeService{statusCode: http.StatusNotFound},
			kind:    workflow.KindBadResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.service)

			key := tt.key
			if key == "" {
				key = "secret"
			}

			c := newClient(t, srv, key)

			job, err := c.LookupJob(context.Background(), srv.URL+"/speechtotext/v3.1/transcriptions/1")

			if tt.kind != "" {
				require.Error(t, err)
				require.Equal(t, tt.kind, workflow.Kind(err))
				require.Equal(t, tt.retry, workflow.CanRetry(err))
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.status, job.Status)
			require.Equal(t, tt.text, job.Text)
		})
	}
}

func Test_PollStatus_JobWithoutStatusFails(t *testing.T) {
	srv := newServer(t, &fakeService{omitStatus: true})
	a := &transcription.Activities{Provider: newClient(t, srv, "secret")}

	ctx := activitytester.WithActivityTestState(context.Background(), "1", "instance-1", slog.Default())

	text, err := a.PollStatus(ctx, srv.URL+"/speechtotext/v3.1/transcriptions/1")
	require.Error(t, err)
	require.Empty(t, text)
	require.Equal(t, workflow.KindBadResponse, workflow.Kind(err))
	require.False(t, workflow.CanRetry(err))
}

func Test_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := newClient(t, srv, "secret")
	srv.Close()

	_, err := c.SubmitJob(context.Background(), "https://blob/audio.wav")
	require.Error(t, err)
	require.Equal(t, workflow.KindUnreachable, workflow.Kind(err))
	require.True(t, workflow.CanRetry(err))
}

func Test_New_RequiresEndpoint(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}
