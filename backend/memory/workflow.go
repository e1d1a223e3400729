package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/core"
)

func (mb *memoryBackend) GetWorkflowTask(ctx context.Context) (*backend.WorkflowTask, error) {
	txn := mb.db.Txn(true)
	defer txn.Abort()

	now := mb.options.Clock.Now()

	it, err := txn.Get(instancesTable, "id")
	if err != nil {
		return nil, err
	}

	var (
		found     *instance
		newEvents []*history.Event
	)

	for obj := it.Next(); obj != nil; obj = it.Next() {
		i := obj.(*instance)
		if i.locked(now) {
			continue
		}

		for _, e := range i.PendingEvents {
			if visible(e, now) {
				newEvents = append(newEvents, copyEvent(e))
			}
		}

		if len(newEvents) > 0 {
			found = i
			break
		}
	}

	if found == nil {
		return nil, nil
	}

	lockedUntil := now.Add(mb.options.WorkflowLockTimeout)

	n := found.clone()
	n.LockedUntil = &lockedUntil
	n.LockToken = uuid.NewString()

	if err := txn.Insert(instancesTable, n); err != nil {
		return nil, fmt.Errorf("locking instance: %w", err)
	}

	txn.Commit()

	return &backend.WorkflowTask{
		ID:                     n.LockToken,
		WorkflowInstance:       n.Instance,
		WorkflowInstanceStatus: n.Status,
		LastSequenceID:         n.lastSequenceID(),
		NewEvents:              newEvents,
	}, nil
}

func (mb *memoryBackend) ExtendWorkflowTask(ctx context.Context, task *backend.WorkflowTask) error {
	txn := mb.db.Txn(true)
	defer txn.Abort()

	i, err := getInstance(txn, task.WorkflowInstance.InstanceID)
	if err != nil {
		return err
	}

	if i.LockToken != task.ID {
		return backend.ErrTaskNotFound
	}

	lockedUntil := mb.options.Clock.Now().Add(mb.options.WorkflowLockTimeout)

	n := i.clone()
	n.LockedUntil = &lockedUntil

	if err := txn.Insert(instancesTable, n); err != nil {
		return fmt.Errorf("extending lock: %w", err)
	}

	txn.Commit()

	return nil
}

func (mb *memoryBackend) CompleteWorkflowTask(
	ctx context.Context, task *backend.WorkflowTask, status core.WorkflowInstanceStatus,
	executedEvents, activityEvents, timerEvents []*history.Event,
) error {
	txn := mb.db.Txn(true)
	defer txn.Abort()

	i, err := getInstance(txn, task.WorkflowInstance.InstanceID)
	if err != nil {
		return err
	}

	if i.LockToken != task.ID {
		return backend.ErrTaskNotFound
	}

	lastSequenceID := i.lastSequenceID()
	if lastSequenceID != task.LastSequenceID {
		return fmt.Errorf("%w: expected last sequence id %d, found %d", backend.ErrSequenceConflict, task.LastSequenceID, lastSequenceID)
	}

	if status != i.Status {
		if err := core.TransitionStatus(i.Status, status); err != nil {
			return err
		}
	}

	now := mb.options.Clock.Now()

	n := i.clone()
	n.Status = status
	n.LockedUntil = nil
	n.LockToken = ""

	if status.Terminal() && n.CompletedAt == nil {
		n.CompletedAt = &now
	}

	h := slices.Clone(i.History)
	for _, e := range executedEvents {
		if e.SequenceID != lastSequenceID+1 {
			return fmt.Errorf("%w: event %s has sequence id %d, expected %d", backend.ErrSequenceConflict, e.Type, e.SequenceID, lastSequenceID+1)
		}

		h = append(h, copyEvent(e))
		lastSequenceID++
	}
	n.History = h

	// Consumed events are removed even when the executor dropped them
	consumed := make(map[string]bool, len(task.NewEvents))
	for _, e := range task.NewEvents {
		consumed[e.ID] = true
	}

	pending := make([]*history.Event, 0, len(i.PendingEvents)+len(timerEvents))
	for _, e := range i.PendingEvents {
		if !consumed[e.ID] {
			pending = append(pending, e)
		}
	}

	pending = append(pending, copyEvents(timerEvents)...)
	n.PendingEvents = pending

	if err := txn.Insert(instancesTable, n); err != nil {
		return fmt.Errorf("checkpointing instance: %w", err)
	}

	for _, e := range activityEvents {
		if err := txn.Insert(activitiesTable, &activity{
			ID:         e.ID,
			InstanceID: i.ID,
			Instance:   i.Instance,
			Event:      copyEvent(e),
		}); err != nil {
			return fmt.Errorf("scheduling activity: %w", err)
		}
	}

	txn.Commit()

	return nil
}
