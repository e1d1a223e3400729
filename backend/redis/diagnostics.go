package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/diag"
)

func (rb *redisBackend) GetWorkflowInstance(ctx context.Context, instanceID string) (*diag.WorkflowInstanceRef, error) {
	state, err := readInstance(ctx, rb.rdb, rb.keys.instanceKey(instanceID))
	if err != nil {
		if errors.Is(err, backend.ErrInstanceNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return instanceRef(state), nil
}

func (rb *redisBackend) GetWorkflowInstances(ctx context.Context, afterInstanceID string, count int) ([]*diag.WorkflowInstanceRef, error) {
	var start int64
	if afterInstanceID != "" {
		rank, err := rb.rdb.ZRevRank(ctx, rb.keys.instancesByCreation(), afterInstanceID).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("finding instance: %w", err)
		} else if err == nil {
			start = rank + 1
		}
	}

	instanceIDs, err := rb.rdb.ZRevRange(ctx, rb.keys.instancesByCreation(), start, start+int64(count)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}

	refs := make([]*diag.WorkflowInstanceRef, 0, len(instanceIDs))
	for _, instanceID := range instanceIDs {
		state, err := readInstance(ctx, rb.rdb, rb.keys.instanceKey(instanceID))
		if err != nil {
			if errors.Is(err, backend.ErrInstanceNotFound) {
				continue
			}

			return nil, err
		}

		refs = append(refs, instanceRef(state))
	}

	return refs, nil
}

// GetFutureEvents returns pending events that are not visible yet, i.e. timers that have not fired.
func (rb *redisBackend) GetFutureEvents(ctx context.Context) ([]*history.Event, error) {
	instanceIDs, err := rb.rdb.ZRange(ctx, rb.keys.instancesByCreation(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}

	now := rb.now()

	var events []*history.Event
	for _, instanceID := range instanceIDs {
		pending, err := readEvents(ctx, rb.rdb, rb.keys.pendingEventsKey(instanceID), 0)
		if err != nil {
			return nil, err
		}

		for _, e := range pending {
			if !visible(e, now) {
				events = append(events, e)
			}
		}
	}

	return events, nil
}

func instanceRef(state *instanceState) *diag.WorkflowInstanceRef {
	return &diag.WorkflowInstanceRef{
		Instance:    state.Instance,
		CreatedAt:   state.CreatedAt,
		CompletedAt: state.CompletedAt,
		Status:      state.Status,
	}
}
