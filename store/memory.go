package store

import (
	"context"
	"slices"
	"sync"

	"github.com/zephyrtronium/livecalc"
	"github.com/zephyrtronium/livecalc/expressions"
)

// Memory is an in-memory store for testing.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]livecalc.Snapshot
	history  map[string][]expressions.Entry
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]livecalc.Snapshot),
		history:  make(map[string][]expressions.Entry),
	}
}

// Close is a no-op for memory store.
func (m *Memory) Close() error {
	return nil
}

// SaveSnapshot stores a session snapshot.
func (m *Memory) SaveSnapshot(id string, snap livecalc.Snapshot) error {
	if err := checkID(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = copySnapshot(snap)
	return nil
}

// LoadSnapshot retrieves the snapshot saved under id.
func (m *Memory) LoadSnapshot(id string) (livecalc.Snapshot, bool, error) {
	if err := checkID(id); err != nil {
		return livecalc.Snapshot{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.sessions[id]
	if !ok {
		return livecalc.Snapshot{}, false, nil
	}
	return copySnapshot(snap), true, nil
}

func copySnapshot(snap livecalc.Snapshot) livecalc.Snapshot {
	snap.Evaluator = slices.Clone(snap.Evaluator)
	if snap.Pending != nil {
		p := *snap.Pending
		snap.Pending = &p
	}
	return snap
}

// History returns the history of a session.
func (m *Memory) History(id string) expressions.HistoryStore {
	return &memoryHistory{m: m, id: id}
}

type memoryHistory struct {
	m  *Memory
	id string
}

func (h *memoryHistory) AddEntry(ctx context.Context, e expressions.Entry) error {
	if err := checkID(h.id); err != nil {
		return err
	}
	e.Expr = livecalc.NewExpr(e.Expr.Tokens()...)
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	l := h.m.history[h.id]
	if i := int(e.Slot) - 1; i >= 0 && i < len(l) {
		l[i] = e
		return nil
	}
	h.m.history[h.id] = append(l, e)
	return nil
}

func (h *memoryHistory) UpdateEntry(ctx context.Context, e expressions.Entry) error {
	if err := checkID(h.id); err != nil {
		return err
	}
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	l := h.m.history[h.id]
	for i := range l {
		if l[i].Slot == e.Slot {
			l[i].Value = e.Value
			return nil
		}
	}
	return &EntryError{Session: h.id, Slot: e.Slot}
}

func (h *memoryHistory) Entries(ctx context.Context) ([]expressions.Entry, error) {
	if err := checkID(h.id); err != nil {
		return nil, err
	}
	h.m.mu.RLock()
	defer h.m.mu.RUnlock()
	l := h.m.history[h.id]
	r := make([]expressions.Entry, len(l))
	for i, e := range l {
		e.Expr = livecalc.NewExpr(e.Expr.Tokens()...)
		r[i] = e
	}
	return r, nil
}
