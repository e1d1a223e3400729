package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/internal/metrics"
)

type countingProvider struct {
	events []*history.Event
	calls  []*int64
}

func (p *countingProvider) GetWorkflowInstanceHistory(ctx context.Context, instance *core.WorkflowInstance, lastSequenceID *int64) ([]*history.Event, error) {
	p.calls = append(p.calls, lastSequenceID)

	if lastSequenceID == nil {
		return p.events, nil
	}

	for i, e := range p.events {
		if e.SequenceID > *lastSequenceID {
			return p.events[i:], nil
		}
	}

	return []*history.Event{}, nil
}

func events(from, to int64) []*history.Event {
	r := []*history.Event{}
	for i := from; i <= to; i++ {
		r = append(r, history.NewHistoryEvent(i, time.Now(), history.EventType_WorkflowTaskStarted, &history.WorkflowTaskStartedAttributes{}))
	}

	return r
}

func Test_HistoryCache_FetchesOnlyNewEvents(t *testing.T) {
	p := &countingProvider{events: events(1, 3)}
	c := NewHistoryCache(metrics.NewNoopMetricsClient(), p, 10, time.Minute)

	instance := core.NewWorkflowInstance("instanceID", "executionID")

	h, err := c.GetWorkflowInstanceHistory(context.Background(), instance, nil)
	require.NoError(t, err)
	require.Len(t, h, 3)
	require.Nil(t, p.calls[0])

	p.events = append(p.events, events(4, 5)...)

	h, err = c.GetWorkflowInstanceHistory(context.Background(), instance, nil)
	require.NoError(t, err)
	require.Len(t, h, 5)
	require.Equal(t, int64(5), h[4].SequenceID)
	require.Equal(t, int64(3), *p.calls[1])

	last := int64(4)
	h, err = c.GetWorkflowInstanceHistory(context.Background(), instance, &last)
	require.NoError(t, err)
	require.Len(t, h, 1)
	require.Equal(t, int64(5), h[0].SequenceID)
}

func Test_HistoryCache_Evict(t *testing.T) {
	p := &countingProvider{events: events(1, 2)}
	c := NewHistoryCache(metrics.NewNoopMetricsClient(), p, 10, time.Minute)

	instance := core.NewWorkflowInstance("instanceID", "executionID")

	_, err := c.GetWorkflowInstanceHistory(context.Background(), instance, nil)
	require.NoError(t, err)

	c.Evict(instance)

	_, err = c.GetWorkflowInstanceHistory(context.Background(), instance, nil)
	require.NoError(t, err)
	require.Nil(t, p.calls[1])
}
