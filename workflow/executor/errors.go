package executor

import (
	"fmt"
	"slices"
	"strings"

	"github.com/voxflow/go-transcribe/core"
)

// errReplayMismatch is returned when replaying workflow code does not produce the decisions
// recorded in the history.
type errReplayMismatch struct {
	msg string
}

func (e *errReplayMismatch) Error() string {
	return e.msg
}

func mismatch(format string, args ...any) error {
	return &errReplayMismatch{msg: fmt.Sprintf(format, args...)}
}

// HistoryCorruptionError is reported when the history of an instance is inconsistent or does not
// match what the workflow code decides on replay.
type HistoryCorruptionError struct {
	Instance *core.WorkflowInstance

	Err error

	// PendingFutures are the outstanding actions of the workflow at the point replay stopped
	PendingFutures map[int64]string
}

func (e *HistoryCorruptionError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "replaying history of %s: %v", e.Instance.InstanceID, e.Err)

	if len(e.PendingFutures) > 0 {
		ids := make([]int64, 0, len(e.PendingFutures))
		for id := range e.PendingFutures {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		sb.WriteString(" (pending:")
		for _, id := range ids {
			fmt.Fprintf(&sb, " %d-%s", id, e.PendingFutures[id])
		}
		sb.WriteString(")")
	}

	return sb.String()
}

func (e *HistoryCorruptionError) Unwrap() error {
	return e.Err
}
