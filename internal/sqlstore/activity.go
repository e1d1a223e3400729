package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/core"
)

func scheduleActivity(ctx context.Context, tx *sql.Tx, instance *core.WorkflowInstance, event *history.Event) error {
	attributes, err := history.SerializeAttributes(event.Attributes)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(
		ctx,
		"INSERT INTO `activities` (instance_id, execution_id, "+eventColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		instance.InstanceID,
		instance.ExecutionID,
		event.ID,
		event.SequenceID,
		event.Type,
		event.Timestamp.UnixNano(),
		event.ScheduleEventID,
		attributes,
		toNanos(event.VisibleAt),
	)

	return err
}

func (s *Store) GetActivityTask(ctx context.Context) (*backend.ActivityTask, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := s.now()

	var activityID string
	if err := tx.QueryRowContext(
		ctx,
		"SELECT id FROM `activities` WHERE locked_until IS NULL OR locked_until <= ? ORDER BY timestamp LIMIT 1"+s.dialect.SkipLocked,
		now.UnixNano(),
	).Scan(&activityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("finding activity task: %w", err)
	}

	lockToken := uuid.NewString()
	if _, err := tx.ExecContext(
		ctx,
		"UPDATE `activities` SET locked_until = ?, lock_token = ? WHERE id = ?",
		now.Add(s.options.ActivityLockTimeout).UnixNano(),
		lockToken,
		activityID,
	); err != nil {
		return nil, fmt.Errorf("locking activity: %w", err)
	}

	var instanceID, executionID string
	row := tx.QueryRowContext(
		ctx,
		"SELECT instance_id, execution_id, "+eventColumns+" FROM `activities` WHERE id = ?",
		activityID,
	)

	event, err := scanEvent(&prefixScanner{row: row, prefix: []any{&instanceID, &executionID}})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing activity task: %w", err)
	}

	return &backend.ActivityTask{
		ID:               lockToken,
		WorkflowInstance: core.NewWorkflowInstance(instanceID, executionID),
		Event:            event,
	}, nil
}

func (s *Store) ExtendActivityTask(ctx context.Context, task *backend.ActivityTask) error {
	res, err := s.db.ExecContext(
		ctx,
		"UPDATE `activities` SET locked_until = ? WHERE id = ? AND lock_token = ?",
		s.now().Add(s.options.ActivityLockTimeout).UnixNano(),
		task.Event.ID,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("extending activity lock: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("checking extended activity: %w", err)
	} else if n == 0 {
		return backend.ErrTaskNotFound
	}

	return nil
}

func (s *Store) CompleteActivityTask(ctx context.Context, task *backend.ActivityTask, result *history.Event) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(
		ctx,
		"DELETE FROM `activities` WHERE id = ? AND lock_token = ?",
		task.Event.ID,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("removing activity: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("checking removed activity: %w", err)
	} else if n == 0 {
		return backend.ErrTaskNotFound
	}

	if err := insertPendingEvents(ctx, tx, task.WorkflowInstance.InstanceID, []*history.Event{result}); err != nil {
		return fmt.Errorf("delivering activity result: %w", err)
	}

	return tx.Commit()
}

// prefixScanner scans leading columns into prefix before handing the rest to the event scanner
type prefixScanner struct {
	row    scanner
	prefix []any
}

func (ps *prefixScanner) Scan(dest ...any) error {
	return ps.row.Scan(append(ps.prefix, dest...)...)
}
