package store

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Memory keeps encoded records in a map. Records are stored encoded so
// callers never share slices with the store.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Load(ctx context.Context, canvas string) (Record, error) {
	m.mu.RLock()
	data, ok := m.data[canvas]
	m.mu.RUnlock()
	if !ok {
		return Record{}, notFound(canvas)
	}
	return decodeRecord(data)
}

func (m *Memory) Save(ctx context.Context, rec Record) error {
	rec.UpdatedAt = time.Now().UTC()
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[rec.Canvas] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, canvas string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[canvas]; !ok {
		return notFound(canvas)
	}
	delete(m.data, canvas)
	return nil
}

func (m *Memory) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	slices.Sort(ids)
	return ids, nil
}

func (m *Memory) Close() error { return nil }
