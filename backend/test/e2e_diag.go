package test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voxflow/go-transcribe/client"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/diag"
	"github.com/voxflow/go-transcribe/worker"
	"github.com/voxflow/go-transcribe/workflow"
)

var e2eDiagTests = []backendTest{
	{
		name: "Diag_ListsInstancesAndHistory",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b TestBackend) {
			db, ok := b.(diag.Backend)
			if !ok {
				t.Skip("backend does not support diagnostics")
				return
			}

			wf := func(ctx workflow.Context) (int, error) {
				return 42, nil
			}
			register(t, ctx, w, []any{wf}, nil)

			instances := make([]*core.WorkflowInstance, 0, 3)
			for i := 0; i < 3; i++ {
				instance := runWorkflow(t, ctx, c, wf)
				_, err := client.GetWorkflowResult[int](ctx, c, instance, time.Second*10)
				require.NoError(t, err)

				instances = append(instances, instance)

				// Creation timestamps order the listing
				time.Sleep(5 * time.Millisecond)
			}

			srv := httptest.NewServer(diag.NewServeMux(db))
			defer srv.Close()

			var refs []*diag.WorkflowInstanceRef
			getJSON(t, srv.URL+"/api/?count=2", &refs)
			require.Len(t, refs, 2)
			require.Equal(t, instances[2].InstanceID, refs[0].Instance.InstanceID)
			require.Equal(t, instances[1].InstanceID, refs[1].Instance.InstanceID)
			require.Equal(t, core.WorkflowInstanceStatusCompleted, refs[0].Status)
			require.NotNil(t, refs[0].CompletedAt)

			getJSON(t, srv.URL+"/api/?count=2&after="+refs[1].Instance.InstanceID, &refs)
			require.Len(t, refs, 1)
			require.Equal(t, instances[0].InstanceID, refs[0].Instance.InstanceID)

			var info diag.WorkflowInstanceInfo
			getJSON(t, srv.URL+"/api/"+instances[0].InstanceID, &info)
			require.Equal(t, instances[0].InstanceID, info.Instance.InstanceID)
			require.NotEmpty(t, info.History)
			require.Equal(t, "WorkflowTaskStarted", info.History[0].Type)
			require.Equal(t, "WorkflowExecutionFinished", info.History[len(info.History)-1].Type)

			r, err := http.Get(srv.URL + "/api/does-not-exist")
			require.NoError(t, err)
			defer r.Body.Close()
			require.Equal(t, http.StatusNotFound, r.StatusCode)
		},
	},
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()

	r, err := http.Get(url)
	require.NoError(t, err)
	defer r.Body.Close()

	require.Equal(t, http.StatusOK, r.StatusCode)
	require.NoError(t, json.NewDecoder(r.Body).Decode(v))
}
