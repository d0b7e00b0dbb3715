package storage

import (
	"context"
	"sync"
	"time"

	"github.com/vitrinhq/vitrin/internal/visitor"

	"go.uber.org/zap"
)

// MemoryStore keeps both collections in process memory
type MemoryStore struct {
	logger  *zap.Logger
	active  *memoryActive
	history *memoryHistory
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		logger:  logger.Named("storage.memory"),
		active:  &memoryActive{docs: make(map[string]*visitor.Visitor)},
		history: &memoryHistory{docs: make(map[string]*visitor.HistoryRecord)},
	}
}

func (s *MemoryStore) Active() ActiveRepository   { return s.active }
func (s *MemoryStore) History() HistoryRepository { return s.history }
func (s *MemoryStore) Close() error               { return nil }

type memoryActive struct {
	mu   sync.RWMutex
	docs map[string]*visitor.Visitor
}

func (m *memoryActive) Put(_ context.Context, v *visitor.Visitor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[v.SessionID] = v.Clone()
	return nil
}

func (m *memoryActive) Get(_ context.Context, sessionID string) (*visitor.Visitor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.docs[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return v.Clone(), nil
}

func (m *memoryActive) Update(_ context.Context, sessionID string, fn func(v *visitor.Visitor)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.docs[sessionID]
	if !ok {
		return ErrNotFound
	}
	cp := v.Clone()
	fn(cp)
	cp.SessionID = sessionID
	m.docs[sessionID] = cp
	return nil
}

func (m *memoryActive) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, sessionID)
	return nil
}

func (m *memoryActive) DeleteIf(_ context.Context, sessionID string, cond func(v *visitor.Visitor) bool) (*visitor.Visitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.docs[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := v.Clone()
	if cond != nil && !cond(cp) {
		return nil, nil
	}
	delete(m.docs, sessionID)
	return cp, nil
}

func (m *memoryActive) List(_ context.Context, q ActiveQuery) ([]*visitor.Visitor, error) {
	m.mu.RLock()
	out := make([]*visitor.Visitor, 0, len(m.docs))
	for _, v := range m.docs {
		if q.Matches(v) {
			out = append(out, v.Clone())
		}
	}
	m.mu.RUnlock()

	sortByLastActivity(out)
	return out, nil
}

type memoryHistory struct {
	mu   sync.RWMutex
	docs map[string]*visitor.HistoryRecord
}

func (m *memoryHistory) Put(_ context.Context, r *visitor.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[r.SessionID] = r.Clone()
	return nil
}

func (m *memoryHistory) Get(_ context.Context, sessionID string) (*visitor.HistoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.docs[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (m *memoryHistory) Update(_ context.Context, sessionID string, fn func(r *visitor.HistoryRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.docs[sessionID]
	if !ok {
		return ErrNotFound
	}
	cp := r.Clone()
	fn(cp)
	cp.SessionID = sessionID
	m.docs[sessionID] = cp
	return nil
}

func (m *memoryHistory) ListSince(_ context.Context, since time.Time) ([]*visitor.HistoryRecord, error) {
	m.mu.RLock()
	out := make([]*visitor.HistoryRecord, 0, len(m.docs))
	for _, r := range m.docs {
		if !r.EnteredAt.Before(since) {
			out = append(out, r.Clone())
		}
	}
	m.mu.RUnlock()

	sortByEnteredAt(out)
	return out, nil
}
