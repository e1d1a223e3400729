package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/voxflow/go-transcribe/backend/history"
)

// Timestamps are stored as unix nanoseconds, replays compare them for equality.

func toNanos(t *time.Time) *int64 {
	if t == nil {
		return nil
	}

	n := t.UnixNano()
	return &n
}

func fromNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}

	t := time.Unix(0, n.Int64)
	return &t
}

type scanner interface {
	Scan(dest ...any) error
}

const eventColumns = "id, sequence_id, event_type, timestamp, schedule_event_id, attributes, visible_at"

func scanEvent(row scanner) (*history.Event, error) {
	var (
		attributes []byte
		timestamp  int64
		visibleAt  sql.NullInt64
	)

	e := &history.Event{}
	if err := row.Scan(&e.ID, &e.SequenceID, &e.Type, &timestamp, &e.ScheduleEventID, &attributes, &visibleAt); err != nil {
		return nil, fmt.Errorf("scanning event: %w", err)
	}

	a, err := history.DeserializeAttributes(e.Type, attributes)
	if err != nil {
		return nil, fmt.Errorf("deserializing attributes: %w", err)
	}

	e.Attributes = a
	e.Timestamp = time.Unix(0, timestamp)
	e.VisibleAt = fromNanos(visibleAt)

	return e, nil
}

func scanEvents(rows *sql.Rows) ([]*history.Event, error) {
	defer rows.Close()

	events := make([]*history.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

func getHistory(ctx context.Context, tx *sql.Tx, instanceID string, lastSequenceID *int64) ([]*history.Event, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if lastSequenceID != nil {
		rows, err = tx.QueryContext(
			ctx,
			"SELECT "+eventColumns+" FROM `history` WHERE instance_id = ? AND sequence_id > ? ORDER BY sequence_id",
			instanceID, *lastSequenceID)
	} else {
		rows, err = tx.QueryContext(
			ctx,
			"SELECT "+eventColumns+" FROM `history` WHERE instance_id = ? ORDER BY sequence_id",
			instanceID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting history: %w", err)
	}

	return scanEvents(rows)
}

// getPendingEvents returns the pending events of the instance visible at the given time in insertion order
func getPendingEvents(ctx context.Context, tx *sql.Tx, instanceID string, now time.Time) ([]*history.Event, error) {
	rows, err := tx.QueryContext(
		ctx,
		"SELECT "+eventColumns+" FROM `pending_events` WHERE instance_id = ? AND (visible_at IS NULL OR visible_at <= ?) ORDER BY seq",
		instanceID, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("getting pending events: %w", err)
	}

	return scanEvents(rows)
}

func insertPendingEvents(ctx context.Context, tx *sql.Tx, instanceID string, events []*history.Event) error {
	return insertEvents(ctx, tx, "pending_events", instanceID, events)
}

func insertHistoryEvents(ctx context.Context, tx *sql.Tx, instanceID string, events []*history.Event) error {
	return insertEvents(ctx, tx, "history", instanceID, events)
}

func insertEvents(ctx context.Context, tx *sql.Tx, tableName string, instanceID string, events []*history.Event) error {
	const batchSize = 20
	for batchStart := 0; batchStart < len(events); batchStart += batchSize {
		batchEnd := batchStart + batchSize
		if batchEnd > len(events) {
			batchEnd = len(events)
		}
		batchEvents := events[batchStart:batchEnd]

		query := "INSERT INTO `" + tableName + "` (instance_id, " + eventColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?)" +
			strings.Repeat(", (?, ?, ?, ?, ?, ?, ?, ?)", len(batchEvents)-1)

		args := make([]any, 0, len(batchEvents)*8)

		for _, e := range batchEvents {
			a, err := history.SerializeAttributes(e.Attributes)
			if err != nil {
				return err
			}

			args = append(args, instanceID, e.ID, e.SequenceID, e.Type, e.Timestamp.UnixNano(), e.ScheduleEventID, a, toNanos(e.VisibleAt))
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	return nil
}
