package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/core"
)

func (rb *redisBackend) CreateWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance, event *history.Event) error {
	instanceKey := rb.keys.instanceKey(instance.InstanceID)

	return rb.withTx(ctx, func(tx *redis.Tx) error {
		_, err := readInstance(ctx, tx, instanceKey)
		if err == nil {
			return backend.ErrInstanceAlreadyExists
		} else if !errors.Is(err, backend.ErrInstanceNotFound) {
			return err
		}

		now := rb.now()
		state, err := json.Marshal(&instanceState{
			Instance:  instance,
			Status:    core.WorkflowInstanceStatusRunning,
			CreatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("marshaling instance: %w", err)
		}

		events, err := marshalEvents([]*history.Event{event})
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, instanceKey, state, 0)
			p.RPush(ctx, rb.keys.pendingEventsKey(instance.InstanceID), events...)
			p.ZAddLT(ctx, rb.keys.readyInstances(), redis.Z{Score: score(now), Member: instance.InstanceID})
			p.ZAdd(ctx, rb.keys.instancesByCreation(), redis.Z{Score: score(now), Member: instance.InstanceID})
			p.SAdd(ctx, rb.keys.instancesActive(), instance.InstanceID)
			return nil
		})

		return err
	}, instanceKey)
}

func (rb *redisBackend) TerminateWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance, event *history.Event) error {
	instanceKey := rb.keys.instanceKey(instance.InstanceID)

	return rb.withTx(ctx, func(tx *redis.Tx) error {
		state, err := readInstance(ctx, tx, instanceKey)
		if err != nil {
			return err
		}

		if state.Status.Terminal() {
			return backend.ErrInstanceFinished
		}

		events, err := marshalEvents([]*history.Event{event})
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.RPush(ctx, rb.keys.pendingEventsKey(instance.InstanceID), events...)
			p.ZAddLT(ctx, rb.keys.readyInstances(), redis.Z{Score: score(rb.now()), Member: instance.InstanceID})
			return nil
		})

		return err
	}, instanceKey)
}

func (rb *redisBackend) RemoveWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance) error {
	return rb.removeInstance(ctx, instance.InstanceID)
}

func (rb *redisBackend) RemoveWorkflowInstances(ctx context.Context, options ...backend.RemovalOption) error {
	ro := backend.RemovalOptions{}
	for _, opt := range options {
		opt(&ro)
	}

	if ro.FinishedBefore.IsZero() {
		return nil
	}

	instanceIDs, err := rb.rdb.ZRangeArgs(ctx, redis.ZRangeArgs{
		Key:     rb.keys.instancesCompleted(),
		Start:   "-inf",
		Stop:    "(" + strconv.FormatFloat(score(ro.FinishedBefore), 'f', 0, 64),
		ByScore: true,
	}).Result()
	if err != nil {
		return fmt.Errorf("finding instances to remove: %w", err)
	}

	for _, instanceID := range instanceIDs {
		if err := rb.removeInstance(ctx, instanceID); err != nil && !errors.Is(err, backend.ErrInstanceNotFound) {
			return err
		}
	}

	return nil
}

func (rb *redisBackend) removeInstance(ctx context.Context, instanceID string) error {
	instanceKey := rb.keys.instanceKey(instanceID)
	activitiesKey := rb.keys.instanceActivitiesKey(instanceID)

	return rb.withTx(ctx, func(tx *redis.Tx) error {
		state, err := readInstance(ctx, tx, instanceKey)
		if err != nil {
			return err
		}

		if !state.Status.Terminal() {
			return backend.ErrInstanceNotFinished
		}

		activityIDs, err := tx.SMembers(ctx, activitiesKey).Result()
		if err != nil {
			return fmt.Errorf("reading instance activities: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for _, activityID := range activityIDs {
				p.Del(ctx, rb.keys.activityKey(activityID))
				p.ZRem(ctx, rb.keys.readyActivities(), activityID)
			}

			p.Del(ctx, instanceKey, rb.keys.historyKey(instanceID), rb.keys.pendingEventsKey(instanceID), activitiesKey)
			p.ZRem(ctx, rb.keys.readyInstances(), instanceID)
			p.ZRem(ctx, rb.keys.instancesByCreation(), instanceID)
			p.ZRem(ctx, rb.keys.instancesCompleted(), instanceID)
			p.SRem(ctx, rb.keys.instancesActive(), instanceID)
			return nil
		})

		return err
	}, instanceKey, activitiesKey)
}

func (rb *redisBackend) GetWorkflowInstanceStatus(ctx context.Context, instance *core.WorkflowInstance) (core.WorkflowInstanceStatus, error) {
	state, err := readInstance(ctx, rb.rdb, rb.keys.instanceKey(instance.InstanceID))
	if err != nil {
		return core.WorkflowInstanceStatusRunning, err
	}

	return state.Status, nil
}

func (rb *redisBackend) GetWorkflowInstanceHistory(ctx context.Context, instance *core.WorkflowInstance, lastSequenceID *int64) ([]*history.Event, error) {
	if _, err := readInstance(ctx, rb.rdb, rb.keys.instanceKey(instance.InstanceID)); err != nil {
		return nil, err
	}

	var start int64
	if lastSequenceID != nil {
		start = *lastSequenceID
	}

	return readEvents(ctx, rb.rdb, rb.keys.historyKey(instance.InstanceID), start)
}
