package store

import (
	"context"
	"sync"

	"github.com/sweeney/cloudcover-switch/internal/logic"
)

// Memory keeps state in process memory. Nothing survives a restart.
type Memory struct {
	mu     sync.Mutex
	state  logic.PersistentState
	found  bool
	cycles []CycleRecord

	// LoadError and SaveError, if set, are returned by Load and Save.
	LoadError error
	SaveError error
	// Saves counts successful Save calls.
	Saves int
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Load returns the last saved state, or defaults if nothing was saved.
func (m *Memory) Load(ctx context.Context) (logic.PersistentState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadError != nil {
		return logic.PersistentState{}, false, m.LoadError
	}
	if !m.found {
		return logic.DefaultState(), false, nil
	}
	return m.state, true, nil
}

// Save stores st.
func (m *Memory) Save(ctx context.Context, st logic.PersistentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveError != nil {
		return m.SaveError
	}
	m.state = st
	m.found = true
	m.Saves++
	return nil
}

// AppendCycle records rec.
func (m *Memory) AppendCycle(ctx context.Context, rec CycleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, rec)
	if len(m.cycles) > maxCycles {
		m.cycles = m.cycles[len(m.cycles)-maxCycles:]
	}
	return nil
}

// RecentCycles returns up to n records, newest first.
func (m *Memory) RecentCycles(ctx context.Context, n int) ([]CycleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CycleRecord
	for i := len(m.cycles) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.cycles[i])
	}
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
