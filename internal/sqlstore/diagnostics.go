package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/diag"
)

const instanceColumns = "id, execution_id, status, created_at, completed_at"

func scanInstanceRef(row scanner) (*diag.WorkflowInstanceRef, error) {
	var (
		id, executionID, status string
		createdAt               int64
		completedAt             sql.NullInt64
	)

	if err := row.Scan(&id, &executionID, &status, &createdAt, &completedAt); err != nil {
		return nil, err
	}

	s, err := core.ParseWorkflowInstanceStatus(status)
	if err != nil {
		return nil, err
	}

	return &diag.WorkflowInstanceRef{
		Instance:    core.NewWorkflowInstance(id, executionID),
		CreatedAt:   *fromNanos(sql.NullInt64{Int64: createdAt, Valid: true}),
		CompletedAt: fromNanos(completedAt),
		Status:      s,
	}, nil
}

func (s *Store) GetWorkflowInstance(ctx context.Context, instanceID string) (*diag.WorkflowInstanceRef, error) {
	ref, err := scanInstanceRef(s.db.QueryRowContext(ctx, "SELECT "+instanceColumns+" FROM `instances` WHERE id = ?", instanceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting workflow instance: %w", err)
	}

	return ref, nil
}

func (s *Store) GetWorkflowInstances(ctx context.Context, afterInstanceID string, count int) ([]*diag.WorkflowInstanceRef, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if afterInstanceID != "" {
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT i.id, i.execution_id, i.status, i.created_at, i.completed_at
				FROM instances i, (SELECT id, created_at FROM instances WHERE id = ?) ii
				WHERE i.created_at < ii.created_at OR (i.created_at = ii.created_at AND i.id < ii.id)
				ORDER BY i.created_at DESC, i.id DESC
				LIMIT ?`,
			afterInstanceID,
			count,
		)
	} else {
		rows, err = s.db.QueryContext(
			ctx,
			"SELECT "+instanceColumns+" FROM `instances` ORDER BY created_at DESC, id DESC LIMIT ?",
			count,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing workflow instances: %w", err)
	}
	defer rows.Close()

	refs := make([]*diag.WorkflowInstanceRef, 0, count)
	for rows.Next() {
		ref, err := scanInstanceRef(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning workflow instance: %w", err)
		}

		refs = append(refs, ref)
	}

	return refs, rows.Err()
}

// GetFutureEvents returns pending events that are not visible yet, i.e. timers that have not fired.
func (s *Store) GetFutureEvents(ctx context.Context) ([]*history.Event, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT "+eventColumns+" FROM `pending_events` WHERE visible_at IS NOT NULL AND visible_at > ? ORDER BY visible_at",
		s.now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("getting future events: %w", err)
	}

	return scanEvents(rows)
}
