package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxflow/go-transcribe/internal/sync"
)

func reg_workflow1(ctx sync.Context) error {
	return nil
}

func TestRegistry_RegisterWorkflow(t *testing.T) {
	tests := []struct {
		name     string
		regName  string
		workflow any
		wantName string
		wantErr  bool
	}{
		{
			name:     "valid workflow",
			workflow: reg_workflow1,
			wantName: "reg_workflow1",
		},
		{
			name:     "valid workflow by name",
			regName:  "CustomName",
			workflow: reg_workflow1,
			wantName: "CustomName",
		},
		{
			name:     "valid workflow with results",
			workflow: func(ctx sync.Context) (int, error) { return 42, nil },
		},
		{
			name:     "valid workflow with multiple parameters",
			workflow: func(ctx sync.Context, a, b int) (int, error) { return 42, nil },
		},
		{
			name:     "not a function",
			workflow: 42,
			wantErr:  true,
		},
		{
			name:     "standard context",
			workflow: func(ctx context.Context) error { return nil },
			wantErr:  true,
		},
		{
			name:     "missing error result",
			workflow: func(ctx sync.Context) {},
			wantErr:  true,
		},
		{
			name:     "missing error with results",
			workflow: func(ctx sync.Context) int { return 42 },
			wantErr:  true,
		},
		{
			name:     "too many results",
			workflow: func(ctx sync.Context) (int, int, error) { return 42, 42, nil },
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()

			var opts []RegisterOption
			if tt.regName != "" {
				opts = append(opts, WithName(tt.regName))
			}

			err := r.RegisterWorkflow(tt.workflow, opts...)
			if tt.wantErr {
				var invalid *ErrInvalidWorkflow
				require.ErrorAs(t, err, &invalid)
				return
			}

			require.NoError(t, err)

			if tt.wantName != "" {
				x, err := r.GetWorkflow(tt.wantName)
				require.NoError(t, err)
				require.NotNil(t, x)
			}
		})
	}
}

func TestRegistry_RegisterWorkflow_Twice(t *testing.T) {
	r := New()

	require.NoError(t, r.RegisterWorkflow(reg_workflow1))

	err := r.RegisterWorkflow(reg_workflow1)
	var already *ErrWorkflowAlreadyRegistered
	require.ErrorAs(t, err, &already)
}

func TestRegistry_GetWorkflow_NotFound(t *testing.T) {
	r := New()

	_, err := r.GetWorkflow("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func reg_activity(ctx context.Context) (string, error) {
	return "", nil
}

type reg_activities struct {
	prefix string
}

func (a *reg_activities) StartJob(ctx context.Context, url string) (string, error) {
	return a.prefix + url, nil
}

func (a *reg_activities) PollStatus(ctx context.Context, handle string) (string, error) {
	return "", nil
}

func (a *reg_activities) notAnActivity() {}

func TestRegistry_RegisterActivity(t *testing.T) {
	r := New()

	require.NoError(t, r.RegisterActivity(reg_activity))

	x, err := r.GetActivity("reg_activity")
	require.NoError(t, err)
	require.NotNil(t, x)

	err = r.RegisterActivity(func(ctx context.Context) {})
	var invalid *ErrInvalidActivity
	require.ErrorAs(t, err, &invalid)
}

func TestRegistry_RegisterActivitiesFromStruct(t *testing.T) {
	r := New()

	a := &reg_activities{prefix: "job-"}
	a.notAnActivity()

	require.NoError(t, r.RegisterActivity(a))
	require.Equal(t, []string{"PollStatus", "StartJob"}, r.Activities())

	x, err := r.GetActivity("StartJob")
	require.NoError(t, err)

	handle, err := x.(func(context.Context, string) (string, error))(context.Background(), "audio")
	require.NoError(t, err)
	require.Equal(t, "job-audio", handle)

	_, err = r.GetActivity("notAnActivity")
	require.True(t, errors.Is(err, ErrNotFound))
}
