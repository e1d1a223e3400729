package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
)

func (mb *memoryBackend) GetActivityTask(ctx context.Context) (*backend.ActivityTask, error) {
	txn := mb.db.Txn(true)
	defer txn.Abort()

	now := mb.options.Clock.Now()

	it, err := txn.Get(activitiesTable, "id")
	if err != nil {
		return nil, err
	}

	var found *activity
	for obj := it.Next(); obj != nil; obj = it.Next() {
		a := obj.(*activity)
		if a.LockedUntil == nil || !a.LockedUntil.After(now) {
			found = a
			break
		}
	}

	if found == nil {
		return nil, nil
	}

	lockedUntil := now.Add(mb.options.ActivityLockTimeout)

	n := found.clone()
	n.LockedUntil = &lockedUntil
	n.LockToken = uuid.NewString()

	if err := txn.Insert(activitiesTable, n); err != nil {
		return nil, fmt.Errorf("locking activity: %w", err)
	}

	txn.Commit()

	return &backend.ActivityTask{
		ID:               n.LockToken,
		WorkflowInstance: n.Instance,
		Event:            copyEvent(n.Event),
	}, nil
}

func (mb *memoryBackend) ExtendActivityTask(ctx context.Context, task *backend.ActivityTask) error {
	txn := mb.db.Txn(true)
	defer txn.Abort()

	a, err := getActivity(txn.First(activitiesTable, "id", task.Event.ID))
	if err != nil {
		return err
	}

	if a.LockToken != task.ID {
		return backend.ErrTaskNotFound
	}

	lockedUntil := mb.options.Clock.Now().Add(mb.options.ActivityLockTimeout)

	n := a.clone()
	n.LockedUntil = &lockedUntil

	if err := txn.Insert(activitiesTable, n); err != nil {
		return fmt.Errorf("extending lock: %w", err)
	}

	txn.Commit()

	return nil
}

func (mb *memoryBackend) CompleteActivityTask(ctx context.Context, task *backend.ActivityTask, result *history.Event) error {
	txn := mb.db.Txn(true)
	defer txn.Abort()

	a, err := getActivity(txn.First(activitiesTable, "id", task.Event.ID))
	if err != nil {
		return err
	}

	if a.LockToken != task.ID {
		return backend.ErrTaskNotFound
	}

	if err := txn.Delete(activitiesTable, a); err != nil {
		return fmt.Errorf("removing activity: %w", err)
	}

	i, err := getInstance(txn, a.InstanceID)
	if err != nil {
		return err
	}

	n := i.clone()
	n.PendingEvents = append(slices.Clone(i.PendingEvents), copyEvent(result))

	if err := txn.Insert(instancesTable, n); err != nil {
		return fmt.Errorf("delivering activity result: %w", err)
	}

	txn.Commit()

	return nil
}

func getActivity(obj any, err error) (*activity, error) {
	if err != nil {
		return nil, fmt.Errorf("looking up activity: %w", err)
	}

	if obj == nil {
		return nil, backend.ErrTaskNotFound
	}

	return obj.(*activity), nil
}
