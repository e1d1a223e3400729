package memory

import (
	"context"
	"errors"
	"sort"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/diag"
)

func (mb *memoryBackend) GetWorkflowInstance(ctx context.Context, instanceID string) (*diag.WorkflowInstanceRef, error) {
	txn := mb.db.Txn(false)
	defer txn.Abort()

	i, err := getInstance(txn, instanceID)
	if err != nil {
		if errors.Is(err, backend.ErrInstanceNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return instanceRef(i), nil
}

func (mb *memoryBackend) GetWorkflowInstances(ctx context.Context, afterInstanceID string, count int) ([]*diag.WorkflowInstanceRef, error) {
	txn := mb.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(instancesTable, "id")
	if err != nil {
		return nil, err
	}

	var instances []*instance
	for obj := it.Next(); obj != nil; obj = it.Next() {
		instances = append(instances, obj.(*instance))
	}

	// Newest first, ties broken by id
	sort.Slice(instances, func(a, b int) bool {
		if instances[a].CreatedAt.Equal(instances[b].CreatedAt) {
			return instances[a].ID > instances[b].ID
		}

		return instances[a].CreatedAt.After(instances[b].CreatedAt)
	})

	start := 0
	if afterInstanceID != "" {
		for idx, i := range instances {
			if i.ID == afterInstanceID {
				start = idx + 1
				break
			}
		}
	}

	refs := make([]*diag.WorkflowInstanceRef, 0, count)
	for _, i := range instances[start:] {
		if len(refs) == count {
			break
		}

		refs = append(refs, instanceRef(i))
	}

	return refs, nil
}

// GetFutureEvents returns pending events that are not visible yet, i.e. timers that have not fired.
func (mb *memoryBackend) GetFutureEvents(ctx context.Context) ([]*history.Event, error) {
	txn := mb.db.Txn(false)
	defer txn.Abort()

	now := mb.options.Clock.Now()

	it, err := txn.Get(instancesTable, "id")
	if err != nil {
		return nil, err
	}

	var events []*history.Event
	for obj := it.Next(); obj != nil; obj = it.Next() {
		for _, e := range obj.(*instance).PendingEvents {
			if !visible(e, now) {
				events = append(events, copyEvent(e))
			}
		}
	}

	return events, nil
}

func instanceRef(i *instance) *diag.WorkflowInstanceRef {
	return &diag.WorkflowInstanceRef{
		Instance:    i.Instance,
		CreatedAt:   i.CreatedAt,
		CompletedAt: i.CompletedAt,
		Status:      i.Status,
	}
}
