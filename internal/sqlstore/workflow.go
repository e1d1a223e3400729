package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/core"
)

func (s *Store) GetWorkflowTask(ctx context.Context) (*backend.WorkflowTask, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := s.now()

	// Find an unlocked instance with events to process. Instances in a final state are picked
	// up as well so late events can be consumed.
	var instanceID string
	if err := tx.QueryRowContext(
		ctx,
		`SELECT i.id FROM instances i
			WHERE
				(i.locked_until IS NULL OR i.locked_until <= ?)
				AND EXISTS (
					SELECT 1 FROM pending_events pe
						WHERE pe.instance_id = i.id AND (pe.visible_at IS NULL OR pe.visible_at <= ?)
				)
			LIMIT 1`+s.dialect.SkipLocked,
		now.UnixNano(), // locked_until
		now.UnixNano(), // pending_events.visible_at
	).Scan(&instanceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("finding workflow task: %w", err)
	}

	lockToken := uuid.NewString()
	if _, err := tx.ExecContext(
		ctx,
		"UPDATE `instances` SET locked_until = ?, lock_token = ? WHERE id = ?",
		now.Add(s.options.WorkflowLockTimeout).UnixNano(),
		lockToken,
		instanceID,
	); err != nil {
		return nil, fmt.Errorf("locking workflow instance: %w", err)
	}

	var (
		executionID    string
		status         string
		lastSequenceID int64
	)
	if err := tx.QueryRowContext(
		ctx,
		"SELECT execution_id, status, last_sequence_id FROM `instances` WHERE id = ?",
		instanceID,
	).Scan(&executionID, &status, &lastSequenceID); err != nil {
		return nil, fmt.Errorf("reading workflow instance: %w", err)
	}

	instanceStatus, err := core.ParseWorkflowInstanceStatus(status)
	if err != nil {
		return nil, err
	}

	newEvents, err := getPendingEvents(ctx, tx, instanceID, now)
	if err != nil {
		return nil, err
	}

	if len(newEvents) == 0 {
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing workflow task: %w", err)
	}

	return &backend.WorkflowTask{
		ID:                     lockToken,
		WorkflowInstance:       core.NewWorkflowInstance(instanceID, executionID),
		WorkflowInstanceStatus: instanceStatus,
		LastSequenceID:         lastSequenceID,
		NewEvents:              newEvents,
	}, nil
}

func (s *Store) ExtendWorkflowTask(ctx context.Context, task *backend.WorkflowTask) error {
	res, err := s.db.ExecContext(
		ctx,
		"UPDATE `instances` SET locked_until = ? WHERE id = ? AND lock_token = ?",
		s.now().Add(s.options.WorkflowLockTimeout).UnixNano(),
		task.WorkflowInstance.InstanceID,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("extending workflow task lock: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("checking extended workflow task: %w", err)
	} else if n == 0 {
		return backend.ErrTaskNotFound
	}

	return nil
}

func (s *Store) CompleteWorkflowTask(
	ctx context.Context, task *backend.WorkflowTask, status core.WorkflowInstanceStatus,
	executedEvents, activityEvents, timerEvents []*history.Event,
) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	instanceID := task.WorkflowInstance.InstanceID

	var (
		currentStatus  string
		lastSequenceID int64
		lockToken      sql.NullString
	)
	if err := tx.QueryRowContext(
		ctx,
		"SELECT status, last_sequence_id, lock_token FROM `instances` WHERE id = ?"+s.dialect.ForUpdate,
		instanceID,
	).Scan(&currentStatus, &lastSequenceID, &lockToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return backend.ErrInstanceNotFound
		}

		return fmt.Errorf("reading workflow instance: %w", err)
	}

	if !lockToken.Valid || lockToken.String != task.ID {
		return backend.ErrTaskNotFound
	}

	if lastSequenceID != task.LastSequenceID {
		return fmt.Errorf("%w: expected last sequence id %d, found %d", backend.ErrSequenceConflict, task.LastSequenceID, lastSequenceID)
	}

	from, err := core.ParseWorkflowInstanceStatus(currentStatus)
	if err != nil {
		return err
	}

	if status != from {
		if err := core.TransitionStatus(from, status); err != nil {
			return err
		}
	}

	for _, e := range executedEvents {
		if e.SequenceID != lastSequenceID+1 {
			return fmt.Errorf("%w: event %s has sequence id %d, expected %d", backend.ErrSequenceConflict, e.Type, e.SequenceID, lastSequenceID+1)
		}

		lastSequenceID++
	}

	if err := insertHistoryEvents(ctx, tx, instanceID, executedEvents); err != nil {
		return fmt.Errorf("inserting history events: %w", err)
	}

	// Consumed events are removed even when the executor dropped them
	if len(task.NewEvents) > 0 {
		args := make([]any, 0, len(task.NewEvents)+1)
		args = append(args, instanceID)
		for _, e := range task.NewEvents {
			args = append(args, e.ID)
		}

		if _, err := tx.ExecContext(
			ctx,
			fmt.Sprintf("DELETE FROM `pending_events` WHERE instance_id = ? AND id IN (?%v)", strings.Repeat(",?", len(task.NewEvents)-1)),
			args...,
		); err != nil {
			return fmt.Errorf("removing consumed events: %w", err)
		}
	}

	if err := insertPendingEvents(ctx, tx, instanceID, timerEvents); err != nil {
		return fmt.Errorf("scheduling timers: %w", err)
	}

	for _, e := range activityEvents {
		if err := scheduleActivity(ctx, tx, task.WorkflowInstance, e); err != nil {
			return fmt.Errorf("scheduling activity: %w", err)
		}
	}

	var completedAt *int64
	if status.Terminal() {
		n := s.now().UnixNano()
		completedAt = &n
	}

	if _, err := tx.ExecContext(
		ctx,
		"UPDATE `instances` SET status = ?, last_sequence_id = ?, locked_until = NULL, lock_token = NULL, completed_at = COALESCE(completed_at, ?) WHERE id = ?",
		status.String(),
		lastSequenceID,
		completedAt,
		instanceID,
	); err != nil {
		return fmt.Errorf("unlocking workflow instance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("checkpointing workflow instance: %w", err)
	}

	return nil
}
