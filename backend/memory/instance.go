package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/hashicorp/go-memdb"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/core"
)

func (mb *memoryBackend) CreateWorkflowInstance(ctx context.Context, wfi *core.WorkflowInstance, event *history.Event) error {
	txn := mb.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(instancesTable, "id", wfi.InstanceID)
	if err != nil {
		return fmt.Errorf("looking up instance: %w", err)
	}

	if existing != nil {
		return backend.ErrInstanceAlreadyExists
	}

	if err := txn.Insert(instancesTable, &instance{
		ID:            wfi.InstanceID,
		Instance:      wfi,
		Status:        core.WorkflowInstanceStatusRunning,
		CreatedAt:     mb.options.Clock.Now(),
		PendingEvents: []*history.Event{copyEvent(event)},
	}); err != nil {
		return fmt.Errorf("inserting instance: %w", err)
	}

	txn.Commit()

	return nil
}

func (mb *memoryBackend) TerminateWorkflowInstance(ctx context.Context, wfi *core.WorkflowInstance, event *history.Event) error {
	txn := mb.db.Txn(true)
	defer txn.Abort()

	i, err := getInstance(txn, wfi.InstanceID)
	if err != nil {
		return err
	}

	if i.Status.Terminal() {
		return backend.ErrInstanceFinished
	}

	n := i.clone()
	n.PendingEvents = append(slices.Clone(i.PendingEvents), copyEvent(event))

	if err := txn.Insert(instancesTable, n); err != nil {
		return fmt.Errorf("inserting termination event: %w", err)
	}

	txn.Commit()

	return nil
}

func (mb *memoryBackend) RemoveWorkflowInstance(ctx context.Context, wfi *core.WorkflowInstance) error {
	txn := mb.db.Txn(true)
	defer txn.Abort()

	i, err := getInstance(txn, wfi.InstanceID)
	if err != nil {
		return err
	}

	if !i.Status.Terminal() {
		return backend.ErrInstanceNotFinished
	}

	if err := removeInstance(txn, i); err != nil {
		return err
	}

	txn.Commit()

	return nil
}

func (mb *memoryBackend) RemoveWorkflowInstances(ctx context.Context, options ...backend.RemovalOption) error {
	ro := backend.RemovalOptions{}
	for _, opt := range options {
		opt(&ro)
	}

	txn := mb.db.Txn(true)
	defer txn.Abort()

	it, err := txn.Get(instancesTable, "id")
	if err != nil {
		return err
	}

	var remove []*instance
	for obj := it.Next(); obj != nil; obj = it.Next() {
		i := obj.(*instance)
		if i.CompletedAt != nil && i.CompletedAt.Before(ro.FinishedBefore) {
			remove = append(remove, i)
		}
	}

	for _, i := range remove {
		if err := removeInstance(txn, i); err != nil {
			return err
		}
	}

	txn.Commit()

	return nil
}

func (mb *memoryBackend) GetWorkflowInstanceStatus(ctx context.Context, wfi *core.WorkflowInstance) (core.WorkflowInstanceStatus, error) {
	txn := mb.db.Txn(false)
	defer txn.Abort()

	i, err := getInstance(txn, wfi.InstanceID)
	if err != nil {
		return core.WorkflowInstanceStatusRunning, err
	}

	return i.Status, nil
}

func (mb *memoryBackend) GetWorkflowInstanceHistory(ctx context.Context, wfi *core.WorkflowInstance, lastSequenceID *int64) ([]*history.Event, error) {
	txn := mb.db.Txn(false)
	defer txn.Abort()

	i, err := getInstance(txn, wfi.InstanceID)
	if err != nil {
		return nil, err
	}

	h := make([]*history.Event, 0, len(i.History))
	for _, e := range i.History {
		if lastSequenceID != nil && e.SequenceID <= *lastSequenceID {
			continue
		}

		h = append(h, copyEvent(e))
	}

	return h, nil
}

func getInstance(txn *memdb.Txn, instanceID string) (*instance, error) {
	obj, err := txn.First(instancesTable, "id", instanceID)
	if err != nil {
		return nil, fmt.Errorf("looking up instance: %w", err)
	}

	if obj == nil {
		return nil, backend.ErrInstanceNotFound
	}

	return obj.(*instance), nil
}

func removeInstance(txn *memdb.Txn, i *instance) error {
	if err := txn.Delete(instancesTable, i); err != nil {
		return fmt.Errorf("removing instance: %w", err)
	}

	if _, err := txn.DeleteAll(activitiesTable, "instance", i.ID); err != nil {
		return fmt.Errorf("removing activities: %w", err)
	}

	return nil
}
