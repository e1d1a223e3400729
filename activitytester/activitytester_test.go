package activitytester

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxflow/go-transcribe/activity"
)

func Activity(ctx context.Context, a int, b int) (int, error) {
	activity.Logger(ctx).Debug("Activity is called", "a", a)

	return a + b, nil
}

func TestActivityTester(t *testing.T) {
	ctx := WithActivityTestState(context.Background(), "activityID", "instanceID", nil)

	r, err := Activity(ctx, 35, 12)
	require.Equal(t, 47, r)
	require.NoError(t, err)

	info := activity.GetInfo(ctx)
	require.Equal(t, "activityID", info.ActivityID)
	require.Equal(t, "instanceID", info.WorkflowInstance.InstanceID)
	require.Equal(t, 1, info.Attempt)
}

func TestActivityTester_Attempt(t *testing.T) {
	ctx := WithActivityTestAttempt(context.Background(), "activityID", "instanceID", 3, nil)

	require.Equal(t, 3, activity.GetInfo(ctx).Attempt)
}
