package sqlstore

import (
	"context"
	"fmt"

	"github.com/voxflow/go-transcribe/backend"
)

func (s *Store) GetStats(ctx context.Context) (*backend.Stats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UnixNano()
	stats := &backend.Stats{}

	if err := tx.QueryRowContext(
		ctx,
		"SELECT COUNT(*) FROM `instances` WHERE completed_at IS NULL",
	).Scan(&stats.ActiveWorkflowInstances); err != nil {
		return nil, fmt.Errorf("counting active instances: %w", err)
	}

	if err := tx.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM instances i
			WHERE
				i.completed_at IS NULL
				AND (i.locked_until IS NULL OR i.locked_until <= ?)
				AND EXISTS (
					SELECT 1 FROM pending_events pe
						WHERE pe.instance_id = i.id AND (pe.visible_at IS NULL OR pe.visible_at <= ?)
				)`,
		now, // locked_until
		now, // pending_events.visible_at
	).Scan(&stats.PendingWorkflowTasks); err != nil {
		return nil, fmt.Errorf("counting pending workflow tasks: %w", err)
	}

	if err := tx.QueryRowContext(
		ctx,
		"SELECT COUNT(*) FROM `activities` WHERE locked_until IS NULL OR locked_until <= ?",
		now,
	).Scan(&stats.PendingActivities); err != nil {
		return nil, fmt.Errorf("counting pending activities: %w", err)
	}

	return stats, nil
}
