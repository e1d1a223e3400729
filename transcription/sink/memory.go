// Package sink contains destinations for finished transcription records.
package sink

import (
	"context"
	"sort"

	"github.com/sasha-s/go-deadlock"

	"github.com/voxflow/go-transcribe/transcription"
)

// Memory keeps records in process. Saving the same instance twice overwrites the record.
type Memory struct {
	mu      deadlock.RWMutex
	records map[string]transcription.Record
	saves   int
}

var _ transcription.Sink = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]transcription.Record),
	}
}

func (m *Memory) Save(ctx context.Context, record transcription.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[record.InstanceID] = record
	m.saves++

	return nil
}

func (m *Memory) Get(instanceID string) (transcription.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[instanceID]
	return r, ok
}

// Records returns all records ordered by instance id
func (m *Memory) Records() []transcription.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]transcription.Record, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, r)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].InstanceID < records[j].InstanceID
	})

	return records
}

// Saves returns how often Save was called
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.saves
}
