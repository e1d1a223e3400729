// Package memory provides a history store kept in process memory. It is meant for tests and
// single process deployments, all state is lost when the process exits.
package memory

import (
	"time"

	"github.com/hashicorp/go-memdb"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/backend/metrics"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/diag"
	"github.com/voxflow/go-transcribe/internal/metrickeys"
	"github.com/voxflow/go-transcribe/internal/tracing"
)

const (
	instancesTable  = "instances"
	activitiesTable = "activities"
)

// Records stored in memdb must not be modified after insertion, updates insert a modified copy.
type instance struct {
	ID          string
	Instance    *core.WorkflowInstance
	Status      core.WorkflowInstanceStatus
	CreatedAt   time.Time
	CompletedAt *time.Time

	History       []*history.Event
	PendingEvents []*history.Event

	LockedUntil *time.Time
	LockToken   string
}

func (i *instance) clone() *instance {
	c := *i
	return &c
}

func (i *instance) lastSequenceID() int64 {
	if len(i.History) == 0 {
		return 0
	}

	return i.History[len(i.History)-1].SequenceID
}

func (i *instance) locked(now time.Time) bool {
	return i.LockedUntil != nil && i.LockedUntil.After(now)
}

type activity struct {
	ID          string
	InstanceID  string
	Instance    *core.WorkflowInstance
	Event       *history.Event
	LockedUntil *time.Time
	LockToken   string
}

func (a *activity) clone() *activity {
	c := *a
	return &c
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		instancesTable: {
			Name: instancesTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
			},
		},
		activitiesTable: {
			Name: activitiesTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"instance": {
					Name:    "instance",
					Indexer: &memdb.StringFieldIndex{Field: "InstanceID"},
				},
			},
		},
	},
}

var _ diag.Backend = (*memoryBackend)(nil)

type memoryBackend struct {
	db      *memdb.MemDB
	options backend.Options
}

// NewMemoryBackend creates an empty in-memory history store.
func NewMemoryBackend(opts ...backend.BackendOption) *memoryBackend {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		// Schema is static, this only fails on programming errors
		panic(err)
	}

	return &memoryBackend{
		db:      db,
		options: backend.ApplyOptions(opts...),
	}
}

func (mb *memoryBackend) Tracer() trace.Tracer {
	return tracing.Tracer(mb.options.TracerProvider)
}

func (mb *memoryBackend) Metrics() metrics.Client {
	return mb.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "memory"})
}

func (mb *memoryBackend) Options() *backend.Options {
	return &mb.options
}

func (mb *memoryBackend) Close() error {
	return nil
}

func copyEvent(e *history.Event) *history.Event {
	c := *e
	return &c
}

func copyEvents(events []*history.Event) []*history.Event {
	r := make([]*history.Event, 0, len(events))
	for _, e := range events {
		r = append(r, copyEvent(e))
	}

	return r
}

func visible(e *history.Event, now time.Time) bool {
	return e.VisibleAt == nil || !e.VisibleAt.After(now)
}
