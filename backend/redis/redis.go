// Package redis provides a history store kept in Redis. Updates use optimistic WATCH/MULTI
// transactions which are retried when watched keys change concurrently.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/backend/metrics"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/diag"
	"github.com/voxflow/go-transcribe/internal/metrickeys"
	"github.com/voxflow/go-transcribe/internal/tracing"
)

var _ diag.Backend = (*redisBackend)(nil)

func NewRedisBackend(client redis.UniversalClient, opts ...RedisBackendOption) (*redisBackend, error) {
	options := &RedisOptions{
		Options:      &backend.Options{},
		KeyPrefix:    "transcribe:",
		MaxTxRetries: 10,
	}
	*options.Options = backend.ApplyOptions()

	for _, opt := range opts {
		opt(options)
	}

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &redisBackend{
		rdb:     client,
		options: options,
		keys:    newKeys(options.KeyPrefix),
	}, nil
}

type redisBackend struct {
	rdb     redis.UniversalClient
	options *RedisOptions
	keys    *keys
}

type instanceState struct {
	Instance       *core.WorkflowInstance      `json:"instance"`
	Status         core.WorkflowInstanceStatus `json:"status"`
	CreatedAt      time.Time                   `json:"created_at"`
	CompletedAt    *time.Time                  `json:"completed_at,omitempty"`
	LastSequenceID int64                       `json:"last_sequence_id"`
	LockedUntil    *time.Time                  `json:"locked_until,omitempty"`
	LockToken      string                      `json:"lock_token,omitempty"`
}

func (s *instanceState) locked(now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}

type activityState struct {
	Instance    *core.WorkflowInstance `json:"instance"`
	Event       *history.Event         `json:"event"`
	LockedUntil *time.Time             `json:"locked_until,omitempty"`
	LockToken   string                 `json:"lock_token,omitempty"`
}

func (rb *redisBackend) Metrics() metrics.Client {
	return rb.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "redis"})
}

func (rb *redisBackend) Tracer() trace.Tracer {
	return tracing.Tracer(rb.options.TracerProvider)
}

func (rb *redisBackend) Options() *backend.Options {
	return rb.options.Options
}

func (rb *redisBackend) Close() error {
	return rb.rdb.Close()
}

func (rb *redisBackend) now() time.Time {
	return rb.options.Clock.Now()
}

// withTx runs fn in an optimistic transaction watching the given keys
func (rb *redisBackend) withTx(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	b := retry.WithMaxRetries(rb.options.MaxTxRetries, retry.NewExponential(2*time.Millisecond))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := rb.rdb.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			return retry.RetryableError(err)
		}

		return err
	})
}

// score converts a point in time into a sorted set score, rounding up to the next microsecond
func score(t time.Time) float64 {
	return float64((t.UnixNano() + 999) / 1000)
}

func readInstance(ctx context.Context, c redis.Cmdable, key string) (*instanceState, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, backend.ErrInstanceNotFound
		}

		return nil, fmt.Errorf("reading instance: %w", err)
	}

	var state instanceState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshaling instance: %w", err)
	}

	return &state, nil
}

func readActivity(ctx context.Context, c redis.Cmdable, key string) (*activityState, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading activity: %w", err)
	}

	var state activityState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshaling activity: %w", err)
	}

	return &state, nil
}

func readEvents(ctx context.Context, c redis.Cmdable, key string, start int64) ([]*history.Event, error) {
	msgs, err := c.LRange(ctx, key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}

	events := make([]*history.Event, 0, len(msgs))
	for _, msg := range msgs {
		var event *history.Event
		if err := json.Unmarshal([]byte(msg), &event); err != nil {
			return nil, fmt.Errorf("unmarshaling event: %w", err)
		}

		events = append(events, event)
	}

	return events, nil
}

func marshalEvents(events []*history.Event) ([]any, error) {
	values := make([]any, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshaling event: %w", err)
		}

		values = append(values, string(data))
	}

	return values, nil
}

func visible(e *history.Event, now time.Time) bool {
	return e.VisibleAt == nil || !e.VisibleAt.After(now)
}

// nextVisible returns when the earliest of the given events becomes visible
func nextVisible(events []*history.Event, now time.Time) (time.Time, bool) {
	var next time.Time
	for i, e := range events {
		at := now
		if e.VisibleAt != nil && e.VisibleAt.After(now) {
			at = *e.VisibleAt
		}

		if i == 0 || at.Before(next) {
			next = at
		}
	}

	return next, len(events) > 0
}
