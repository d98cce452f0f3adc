package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sampoursoltan11/paddock-sub000/internal/compliance"
)

type memStore struct {
	mu      sync.RWMutex
	states  map[uuid.UUID][]byte
	reports map[uuid.UUID][]byte
}

// NewMemStore creates an in-memory Store. Records are stored as encoded
// JSON so reads observe the same serialization boundary as the blob
// store. Intended for tests and local single-process runs.
func NewMemStore() Store {
	return &memStore{
		states:  make(map[uuid.UUID][]byte),
		reports: make(map[uuid.UUID][]byte),
	}
}

func (m *memStore) State(ctx context.Context, documentID uuid.UUID) (*WorkflowState, bool, error) {
	m.mu.RLock()
	data, ok := m.states[documentID]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	var state WorkflowState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, fmt.Errorf("decode state %s: %w", documentID, err)
	}
	return &state, true, nil
}

func (m *memStore) PutState(ctx context.Context, documentID uuid.UUID, state *WorkflowState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", documentID, err)
	}

	m.mu.Lock()
	m.states[documentID] = data
	m.mu.Unlock()
	return nil
}

func (m *memStore) Report(ctx context.Context, documentID uuid.UUID) (*compliance.Report, bool, error) {
	m.mu.RLock()
	data, ok := m.reports[documentID]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	var report compliance.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, false, fmt.Errorf("decode report %s: %w", documentID, err)
	}
	return &report, true, nil
}

func (m *memStore) PutReport(ctx context.Context, documentID uuid.UUID, report *compliance.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", documentID, err)
	}

	m.mu.Lock()
	m.reports[documentID] = data
	m.mu.Unlock()
	return nil
}
