package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
)

func (rb *redisBackend) GetActivityTask(ctx context.Context) (*backend.ActivityTask, error) {
	candidates, err := rb.rdb.ZRangeArgs(ctx, redis.ZRangeArgs{
		Key:     rb.keys.readyActivities(),
		Start:   "-inf",
		Stop:    score(rb.now()),
		ByScore: true,
		Count:   10,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("finding ready activities: %w", err)
	}

	for _, activityID := range candidates {
		task, err := rb.lockActivity(ctx, activityID)
		if err != nil {
			if errors.Is(err, errNotReady) {
				continue
			}

			return nil, err
		}

		return task, nil
	}

	return nil, nil
}

func (rb *redisBackend) lockActivity(ctx context.Context, activityID string) (*backend.ActivityTask, error) {
	activityKey := rb.keys.activityKey(activityID)

	var task *backend.ActivityTask

	err := rb.withTx(ctx, func(tx *redis.Tx) error {
		now := rb.now()

		a, err := readActivity(ctx, tx, activityKey)
		if err != nil {
			return err
		}

		if a == nil {
			if _, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.ZRem(ctx, rb.keys.readyActivities(), activityID)
				return nil
			}); err != nil {
				return err
			}

			return errNotReady
		}

		if a.LockedUntil != nil && a.LockedUntil.After(now) {
			return errNotReady
		}

		lockedUntil := now.Add(rb.options.ActivityLockTimeout)
		a.LockedUntil = &lockedUntil
		a.LockToken = uuid.NewString()

		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshaling activity: %w", err)
		}

		if _, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, activityKey, data, 0)
			p.ZAdd(ctx, rb.keys.readyActivities(), redis.Z{Score: score(lockedUntil), Member: activityID})
			return nil
		}); err != nil {
			return err
		}

		task = &backend.ActivityTask{
			ID:               a.LockToken,
			WorkflowInstance: a.Instance,
			Event:            a.Event,
		}

		return nil
	}, activityKey)

	return task, err
}

func (rb *redisBackend) ExtendActivityTask(ctx context.Context, task *backend.ActivityTask) error {
	activityID := task.Event.ID
	activityKey := rb.keys.activityKey(activityID)

	return rb.withTx(ctx, func(tx *redis.Tx) error {
		a, err := readActivity(ctx, tx, activityKey)
		if err != nil {
			return err
		}

		if a == nil || a.LockToken != task.ID {
			return backend.ErrTaskNotFound
		}

		lockedUntil := rb.now().Add(rb.options.ActivityLockTimeout)
		a.LockedUntil = &lockedUntil

		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshaling activity: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, activityKey, data, 0)
			p.ZAdd(ctx, rb.keys.readyActivities(), redis.Z{Score: score(lockedUntil), Member: activityID})
			return nil
		})

		return err
	}, activityKey)
}

func (rb *redisBackend) CompleteActivityTask(ctx context.Context, task *backend.ActivityTask, result *history.Event) error {
	activityID := task.Event.ID
	activityKey := rb.keys.activityKey(activityID)
	instanceID := task.WorkflowInstance.InstanceID

	return rb.withTx(ctx, func(tx *redis.Tx) error {
		a, err := readActivity(ctx, tx, activityKey)
		if err != nil {
			return err
		}

		if a == nil || a.LockToken != task.ID {
			return backend.ErrTaskNotFound
		}

		events, err := marshalEvents([]*history.Event{result})
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, activityKey)
			p.ZRem(ctx, rb.keys.readyActivities(), activityID)
			p.SRem(ctx, rb.keys.instanceActivitiesKey(instanceID), activityID)

			p.RPush(ctx, rb.keys.pendingEventsKey(instanceID), events...)
			p.ZAddLT(ctx, rb.keys.readyInstances(), redis.Z{Score: score(rb.now()), Member: instanceID})
			return nil
		})

		return err
	}, activityKey)
}
