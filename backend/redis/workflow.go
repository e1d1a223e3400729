package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/core"
)

// errNotReady is returned from transactions when a candidate instance or activity cannot be locked
var errNotReady = errors.New("not ready")

func (rb *redisBackend) GetWorkflowTask(ctx context.Context) (*backend.WorkflowTask, error) {
	now := rb.now()

	candidates, err := rb.rdb.ZRangeArgs(ctx, redis.ZRangeArgs{
		Key:     rb.keys.readyInstances(),
		Start:   "-inf",
		Stop:    score(now),
		ByScore: true,
		Count:   10,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("finding ready instances: %w", err)
	}

	for _, instanceID := range candidates {
		task, err := rb.lockInstance(ctx, instanceID)
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

func (rb *redisBackend) lockInstance(ctx context.Context, instanceID string) (*backend.WorkflowTask, error) {
	instanceKey := rb.keys.instanceKey(instanceID)
	pendingKey := rb.keys.pendingEventsKey(instanceID)

	var task *backend.WorkflowTask

	err := rb.withTx(ctx, func(tx *redis.Tx) error {
		now := rb.now()

		state, err := readInstance(ctx, tx, instanceKey)
		if err != nil {
			if errors.Is(err, backend.ErrInstanceNotFound) {
				// Removed in the meantime
				return rb.unready(ctx, tx, instanceID, nil)
			}

			return err
		}

		if state.locked(now) {
			return rb.unready(ctx, tx, instanceID, state.LockedUntil)
		}

		pending, err := readEvents(ctx, tx, pendingKey, 0)
		if err != nil {
			return err
		}

		newEvents := make([]*history.Event, 0, len(pending))
		for _, e := range pending {
			if visible(e, now) {
				newEvents = append(newEvents, e)
			}
		}

		if len(newEvents) == 0 {
			if next, ok := nextVisible(pending, now); ok {
				return rb.unready(ctx, tx, instanceID, &next)
			}

			return rb.unready(ctx, tx, instanceID, nil)
		}

		lockedUntil := now.Add(rb.options.WorkflowLockTimeout)
		state.LockedUntil = &lockedUntil
		state.LockToken = uuid.NewString()

		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("marshaling instance: %w", err)
		}

		if _, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, instanceKey, data, 0)
			p.ZAdd(ctx, rb.keys.readyInstances(), redis.Z{Score: score(lockedUntil), Member: instanceID})
			return nil
		}); err != nil {
			return err
		}

		task = &backend.WorkflowTask{
			ID:                     state.LockToken,
			WorkflowInstance:       state.Instance,
			WorkflowInstanceStatus: state.Status,
			LastSequenceID:         state.LastSequenceID,
			NewEvents:              newEvents,
		}

		return nil
	}, instanceKey, pendingKey)

	return task, err
}

// unready moves an instance that could not be locked to its next wake-up time, or out of the ready set when
// there is none. The write is part of the watched transaction, so a concurrent writer that adds a pending
// event in the meantime aborts it and the instance is looked at again.
func (rb *redisBackend) unready(ctx context.Context, tx *redis.Tx, instanceID string, next *time.Time) error {
	if _, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if next != nil {
			p.ZAdd(ctx, rb.keys.readyInstances(), redis.Z{Score: score(*next), Member: instanceID})
		} else {
			p.ZRem(ctx, rb.keys.readyInstances(), instanceID)
		}

		return nil
	}); err != nil {
		return err
	}

	return errNotReady
}

func (rb *redisBackend) ExtendWorkflowTask(ctx context.Context, task *backend.WorkflowTask) error {
	instanceID := task.WorkflowInstance.InstanceID
	instanceKey := rb.keys.instanceKey(instanceID)

	return rb.withTx(ctx, func(tx *redis.Tx) error {
		state, err := readInstance(ctx, tx, instanceKey)
		if err != nil {
			return err
		}

		if state.LockToken != task.ID {
			return backend.ErrTaskNotFound
		}

		lockedUntil := rb.now().Add(rb.options.WorkflowLockTimeout)
		state.LockedUntil = &lockedUntil

		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("marshaling instance: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, instanceKey, data, 0)
			p.ZAdd(ctx, rb.keys.readyInstances(), redis.Z{Score: score(lockedUntil), Member: instanceID})
			return nil
		})

		return err
	}, instanceKey)
}

func (rb *redisBackend) CompleteWorkflowTask(
	ctx context.Context, task *backend.WorkflowTask, status core.WorkflowInstanceStatus,
	executedEvents, activityEvents, timerEvents []*history.Event,
) error {
	instanceID := task.WorkflowInstance.InstanceID
	instanceKey := rb.keys.instanceKey(instanceID)
	pendingKey := rb.keys.pendingEventsKey(instanceID)

	return rb.withTx(ctx, func(tx *redis.Tx) error {
		state, err := readInstance(ctx, tx, instanceKey)
		if err != nil {
			return err
		}

		if state.LockToken != task.ID {
			return backend.ErrTaskNotFound
		}

		lastSequenceID := state.LastSequenceID
		if lastSequenceID != task.LastSequenceID {
			return fmt.Errorf("%w: expected last sequence id %d, found %d", backend.ErrSequenceConflict, task.LastSequenceID, lastSequenceID)
		}

		if status != state.Status {
			if err := core.TransitionStatus(state.Status, status); err != nil {
				return err
			}
		}

		for _, e := range executedEvents {
			if e.SequenceID != lastSequenceID+1 {
				return fmt.Errorf("%w: event %s has sequence id %d, expected %d", backend.ErrSequenceConflict, e.Type, e.SequenceID, lastSequenceID+1)
			}

			lastSequenceID++
		}

		pending, err := readEvents(ctx, tx, pendingKey, 0)
		if err != nil {
			return err
		}

		// Consumed events are removed even when the executor dropped them
		consumed := make(map[string]bool, len(task.NewEvents))
		for _, e := range task.NewEvents {
			consumed[e.ID] = true
		}

		remaining := make([]*history.Event, 0, len(pending)+len(timerEvents))
		for _, e := range pending {
			if !consumed[e.ID] {
				remaining = append(remaining, e)
			}
		}
		remaining = append(remaining, timerEvents...)

		now := rb.now()

		state.Status = status
		state.LastSequenceID = lastSequenceID
		state.LockedUntil = nil
		state.LockToken = ""
		if status.Terminal() && state.CompletedAt == nil {
			state.CompletedAt = &now
		}

		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("marshaling instance: %w", err)
		}

		executed, err := marshalEvents(executedEvents)
		if err != nil {
			return err
		}

		remainingValues, err := marshalEvents(remaining)
		if err != nil {
			return err
		}

		activities := make(map[string][]byte, len(activityEvents))
		for _, e := range activityEvents {
			a, err := json.Marshal(&activityState{Instance: state.Instance, Event: e})
			if err != nil {
				return fmt.Errorf("marshaling activity: %w", err)
			}

			activities[e.ID] = a
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			if len(executed) > 0 {
				p.RPush(ctx, rb.keys.historyKey(instanceID), executed...)
			}

			p.Del(ctx, pendingKey)
			if len(remainingValues) > 0 {
				p.RPush(ctx, pendingKey, remainingValues...)
			}

			if next, ok := nextVisible(remaining, now); ok {
				p.ZAdd(ctx, rb.keys.readyInstances(), redis.Z{Score: score(next), Member: instanceID})
			} else {
				p.ZRem(ctx, rb.keys.readyInstances(), instanceID)
			}

			p.Set(ctx, instanceKey, data, 0)

			for activityID, a := range activities {
				p.Set(ctx, rb.keys.activityKey(activityID), a, 0)
				p.SAdd(ctx, rb.keys.instanceActivitiesKey(instanceID), activityID)
				p.ZAdd(ctx, rb.keys.readyActivities(), redis.Z{Score: score(now), Member: activityID})
			}

			if status.Terminal() {
				p.SRem(ctx, rb.keys.instancesActive(), instanceID)
				p.ZAdd(ctx, rb.keys.instancesCompleted(), redis.Z{Score: score(*state.CompletedAt), Member: instanceID})
			}

			return nil
		})

		return err
	}, instanceKey, pendingKey)
}
