package statuslog

import (
	"context"
	"sync"
)

// Memory is a process-local log, used when no remote log is configured.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) All(context.Context) ([]Record, error) {
	m.mu.Lock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	m.mu.Unlock()

	sortByTimestamp(out)
	return out, nil
}
