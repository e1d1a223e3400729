package backend

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func Test_ApplyOptions(t *testing.T) {
	c := clock.NewMock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	o := ApplyOptions(
		WithClock(c),
		WithLogger(logger),
		WithWorkflowLockTimeout(5*time.Second),
	)

	require.Same(t, c, o.Clock)
	require.Same(t, logger, o.Logger)
	require.Equal(t, 5*time.Second, o.WorkflowLockTimeout)
	require.Equal(t, DefaultOptions.ActivityLockTimeout, o.ActivityLockTimeout)
}

func Test_ApplyOptions_NilLogger(t *testing.T) {
	o := ApplyOptions(WithLogger(nil))
	require.NotNil(t, o.Logger)
}
