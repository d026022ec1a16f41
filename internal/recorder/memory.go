package recorder

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"PriceOptimizer/internal/model"
)

// MemoryRecorder keeps records in process memory. Used when no database is
// configured and in tests.
type MemoryRecorder struct {
	mu      sync.RWMutex
	records map[string]map[string]model.Record // owner -> name -> record
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{records: make(map[string]map[string]model.Record)}
}

func (m *MemoryRecorder) FindByNameAndOwner(_ context.Context, name, ownerID string) (*model.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[ownerID][name]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", ownerID, name, ErrNotFound)
	}
	return &rec, nil
}

func (m *MemoryRecorder) Save(_ context.Context, rec *model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byName := m.records[rec.OwnerID]
	if byName == nil {
		byName = make(map[string]model.Record)
		m.records[rec.OwnerID] = byName
	}
	if _, ok := byName[rec.Name]; ok {
		return fmt.Errorf("save %s/%s: %w", rec.OwnerID, rec.Name, ErrDuplicate)
	}
	byName[rec.Name] = *rec
	return nil
}

func (m *MemoryRecorder) Update(_ context.Context, rec *model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byName := m.records[rec.OwnerID]
	for name, old := range byName {
		if old.ID != rec.ID {
			continue
		}
		if name != rec.Name {
			if _, taken := byName[rec.Name]; taken {
				return fmt.Errorf("update %s/%s: %w", rec.OwnerID, rec.Name, ErrDuplicate)
			}
			delete(byName, name)
		}
		byName[rec.Name] = *rec
		return nil
	}
	return fmt.Errorf("update %s: %w", rec.ID, ErrNotFound)
}

func (m *MemoryRecorder) ListByOwner(_ context.Context, ownerID string) ([]model.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Record, 0, len(m.records[ownerID]))
	for _, rec := range m.records[ownerID] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRecorder) Delete(_ context.Context, name, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[ownerID][name]; !ok {
		return fmt.Errorf("delete %s/%s: %w", ownerID, name, ErrNotFound)
	}
	delete(m.records[ownerID], name)
	return nil
}

func (m *MemoryRecorder) ChartKeys(_ context.Context) ([]ChartRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ChartRef
	for owner, byName := range m.records {
		for _, rec := range byName {
			if rec.ChartKey != "" {
				out = append(out, ChartRef{OwnerID: owner, Key: rec.ChartKey})
			}
		}
	}
	return out, nil
}

func (m *MemoryRecorder) Close() error { return nil }
