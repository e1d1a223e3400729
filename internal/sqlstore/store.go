// Package sqlstore implements the history store on top of database/sql. Dialects only differ in
// how rows are locked for the duration of a transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/backend/metrics"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/internal/metrickeys"
	"github.com/voxflow/go-transcribe/internal/tracing"
)

type Dialect struct {
	// Name is used to tag metrics
	Name string

	// SkipLocked is appended to queries picking the next instance or activity to lock. Rows
	// locked by concurrent transactions are skipped.
	SkipLocked string

	// ForUpdate is appended to queries reading a row that is updated later in the same transaction
	ForUpdate string

	// TxOptions are used for every read-write transaction
	TxOptions *sql.TxOptions
}

type Store struct {
	db      *sql.DB
	dialect Dialect
	options *backend.Options
}

func New(db *sql.DB, dialect Dialect, options *backend.Options) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		options: options,
	}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Tracer() trace.Tracer {
	return tracing.Tracer(s.options.TracerProvider)
}

func (s *Store) Metrics() metrics.Client {
	return s.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: s.dialect.Name})
}

func (s *Store) Options() *backend.Options {
	return s.options
}

func (s *Store) now() time.Time {
	return s.options.Clock.Now()
}

func (s *Store) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, s.dialect.TxOptions)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}

	return tx, nil
}

func (s *Store) CreateWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance, event *history.Event) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM `instances` WHERE id = ?", instance.InstanceID).Scan(&exists)
	if err == nil {
		return backend.ErrInstanceAlreadyExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("looking up instance: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		"INSERT INTO `instances` (id, execution_id, status, created_at) VALUES (?, ?, ?, ?)",
		instance.InstanceID,
		instance.ExecutionID,
		core.WorkflowInstanceStatusRunning.String(),
		s.now().UnixNano(),
	); err != nil {
		return fmt.Errorf("inserting workflow instance: %w", err)
	}

	if err := insertPendingEvents(ctx, tx, instance.InstanceID, []*history.Event{event}); err != nil {
		return fmt.Errorf("inserting started event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("creating workflow instance: %w", err)
	}

	return nil
}

func (s *Store) TerminateWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance, event *history.Event) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	status, err := s.getStatus(ctx, tx, instance.InstanceID)
	if err != nil {
		return err
	}

	if status.Terminal() {
		return backend.ErrInstanceFinished
	}

	if err := insertPendingEvents(ctx, tx, instance.InstanceID, []*history.Event{event}); err != nil {
		return fmt.Errorf("inserting termination event: %w", err)
	}

	return tx.Commit()
}

func (s *Store) RemoveWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	status, err := s.getStatus(ctx, tx, instance.InstanceID)
	if err != nil {
		return err
	}

	if !status.Terminal() {
		return backend.ErrInstanceNotFinished
	}

	if err := removeInstance(ctx, tx, instance.InstanceID); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) RemoveWorkflowInstances(ctx context.Context, options ...backend.RemovalOption) error {
	ro := backend.RemovalOptions{}
	for _, opt := range options {
		opt(&ro)
	}

	if ro.FinishedBefore.IsZero() {
		return nil
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(
		ctx,
		"SELECT id FROM `instances` WHERE completed_at IS NOT NULL AND completed_at < ?",
		ro.FinishedBefore.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("finding instances to remove: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scanning instance id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Close(); err != nil {
		return err
	}

	for _, id := range ids {
		if err := removeInstance(ctx, tx, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) GetWorkflowInstanceStatus(ctx context.Context, instance *core.WorkflowInstance) (core.WorkflowInstanceStatus, error) {
	var status string
	if err := s.db.QueryRowContext(ctx, "SELECT status FROM `instances` WHERE id = ?", instance.InstanceID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.WorkflowInstanceStatusRunning, backend.ErrInstanceNotFound
		}

		return core.WorkflowInstanceStatusRunning, fmt.Errorf("getting workflow status: %w", err)
	}

	return core.ParseWorkflowInstanceStatus(status)
}

func (s *Store) GetWorkflowInstanceHistory(ctx context.Context, instance *core.WorkflowInstance, lastSequenceID *int64) ([]*history.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT 1 FROM `instances` WHERE id = ?", instance.InstanceID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, backend.ErrInstanceNotFound
		}

		return nil, fmt.Errorf("looking up instance: %w", err)
	}

	return getHistory(ctx, tx, instance.InstanceID, lastSequenceID)
}

func (s *Store) getStatus(ctx context.Context, tx *sql.Tx, instanceID string) (core.WorkflowInstanceStatus, error) {
	var status string
	if err := tx.QueryRowContext(ctx, "SELECT status FROM `instances` WHERE id = ?"+s.dialect.ForUpdate, instanceID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.WorkflowInstanceStatusRunning, backend.ErrInstanceNotFound
		}

		return core.WorkflowInstanceStatusRunning, fmt.Errorf("looking up instance: %w", err)
	}

	return core.ParseWorkflowInstanceStatus(status)
}

func removeInstance(ctx context.Context, tx *sql.Tx, instanceID string) error {
	for _, table := range []string{"history", "pending_events", "activities"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM `"+table+"` WHERE instance_id = ?", instanceID); err != nil {
			return fmt.Errorf("removing %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM `instances` WHERE id = ?", instanceID); err != nil {
		return fmt.Errorf("removing instance: %w", err)
	}

	return nil
}
