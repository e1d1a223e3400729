package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/backend/metrics"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/internal/metrickeys"
	"github.com/voxflow/go-transcribe/workflow/executor"
)

// historyCache keeps recently replayed histories in memory. Histories are append-only, so a
// cached prefix only needs the events recorded after it to be complete again.
type historyCache struct {
	mc metrics.Client
	p  executor.WorkflowHistoryProvider
	c  *ttlcache.Cache[string, []*history.Event]
}

var _ executor.WorkflowHistoryProvider = (*historyCache)(nil)

func NewHistoryCache(mc metrics.Client, p executor.WorkflowHistoryProvider, size int, expiration time.Duration) *historyCache {
	c := ttlcache.New(
		ttlcache.WithCapacity[string, []*history.Event](uint64(size)),
		ttlcache.WithTTL[string, []*history.Event](expiration),
	)

	c.OnEviction(func(ctx context.Context, er ttlcache.EvictionReason, i *ttlcache.Item[string, []*history.Event]) {
		reason := ""
		switch er {
		case ttlcache.EvictionReasonExpired:
			reason = "expired"
		case ttlcache.EvictionReasonCapacityReached:
			reason = "capacity"
		case ttlcache.EvictionReasonDeleted:
			reason = "deleted"
		}

		mc.Counter(metrickeys.HistoryCacheEviction, metrics.Tags{metrickeys.EvictionReason: reason}, 1)
	})

	return &historyCache{
		mc: mc,
		p:  p,
		c:  c,
	}
}

// GetWorkflowInstanceHistory returns the history of the instance, fetching only events that are not
// cached yet from the underlying provider.
func (hc *historyCache) GetWorkflowInstanceHistory(ctx context.Context, instance *core.WorkflowInstance, lastSequenceID *int64) ([]*history.Event, error) {
	key := getKey(instance)

	var cached []*history.Event
	if item := hc.c.Get(key); item != nil {
		cached = item.Value()
		hc.mc.Counter(metrickeys.HistoryCacheHit, metrics.Tags{}, 1)
	}

	var after *int64
	if len(cached) > 0 {
		last := cached[len(cached)-1].SequenceID
		after = &last
	}

	newEvents, err := hc.p.GetWorkflowInstanceHistory(ctx, instance, after)
	if err != nil {
		return nil, err
	}

	h := make([]*history.Event, 0, len(cached)+len(newEvents))
	h = append(h, cached...)
	h = append(h, newEvents...)

	hc.c.Set(key, h, ttlcache.DefaultTTL)
	hc.mc.Gauge(metrickeys.HistoryCacheSize, metrics.Tags{}, int64(hc.c.Len()))

	if lastSequenceID == nil {
		return h, nil
	}

	for i, e := range h {
		if e.SequenceID > *lastSequenceID {
			return h[i:], nil
		}
	}

	return []*history.Event{}, nil
}

// Evict drops the cached history of a finished instance.
func (hc *historyCache) Evict(instance *core.WorkflowInstance) {
	hc.c.Delete(getKey(instance))

	hc.mc.Gauge(metrickeys.HistoryCacheSize, metrics.Tags{}, int64(hc.c.Len()))
}

func (hc *historyCache) StartEviction(ctx context.Context) {
	go hc.c.Start()

	<-ctx.Done()

	hc.c.Stop()
}

func getKey(instance *core.WorkflowInstance) string {
	return fmt.Sprintf("%s-%s", instance.InstanceID, instance.ExecutionID)
}
