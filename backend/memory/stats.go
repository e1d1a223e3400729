package memory

import (
	"context"

	"github.com/voxflow/go-transcribe/backend"
)

func (mb *memoryBackend) GetStats(ctx context.Context) (*backend.Stats, error) {
	txn := mb.db.Txn(false)
	defer txn.Abort()

	now := mb.options.Clock.Now()
	s := &backend.Stats{}

	it, err := txn.Get(instancesTable, "id")
	if err != nil {
		return nil, err
	}

	for obj := it.Next(); obj != nil; obj = it.Next() {
		i := obj.(*instance)
		if i.Status.Terminal() {
			continue
		}

		s.ActiveWorkflowInstances++

		if i.locked(now) {
			continue
		}

		for _, e := range i.PendingEvents {
			if visible(e, now) {
				s.PendingWorkflowTasks++
				break
			}
		}
	}

	ait, err := txn.Get(activitiesTable, "id")
	if err != nil {
		return nil, err
	}

	for obj := ait.Next(); obj != nil; obj = ait.Next() {
		a := obj.(*activity)
		if a.LockedUntil == nil || !a.LockedUntil.After(now) {
			s.PendingActivities++
		}
	}

	return s, nil
}
