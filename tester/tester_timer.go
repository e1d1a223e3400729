package tester

import (
	"time"

	"github.com/voxflow/go-transcribe/backend/history"
)

type testTimer struct {
	// At is the time this timer is scheduled for in test time
	At time.Time

	// Callback is called when the timer fires. Set for callbacks scheduled by the test.
	Callback func()

	// Event is delivered to the workflow when the timer fires. Set for durable timers and
	// scheduled terminations.
	Event *history.Event
}

func (tt *testTimer) fire() *history.Event {
	if tt.Callback != nil {
		tt.Callback()
		return nil
	}

	return tt.Event
}
