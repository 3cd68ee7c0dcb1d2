package workermap

import (
	"context"
	"sync"
)

type workerEntry struct {
	endpoints Endpoints
	available bool
}

// InMemoryMap implements Map for a single process, round-robining new
// assignments across registered available workers in registration order.
type InMemoryMap struct {
	mu          sync.RWMutex
	workers     map[string]*workerEntry
	order       []string
	assignments map[string]string
	cursor      int
}

// NewInMemoryMap returns an empty map with no registered workers.
func NewInMemoryMap() *InMemoryMap {
	return &InMemoryMap{
		workers:     make(map[string]*workerEntry),
		assignments: make(map[string]string),
	}
}

func (m *InMemoryMap) AddWorker(ctx context.Context, id string, endpoints Endpoints) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workers[id]; !exists {
		m.order = append(m.order, id)
	}
	m.workers[id] = &workerEntry{endpoints: endpoints, available: true}
	return nil
}

func (m *InMemoryMap) RemoveWorker(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workers[id]; !exists {
		return ErrUnknownWorker
	}
	delete(m.workers, id)
	for i, wid := range m.order {
		if wid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	for docID, wid := range m.assignments {
		if wid == id {
			delete(m.assignments, docID)
		}
	}
	return nil
}

func (m *InMemoryMap) SetWorkerAvailability(ctx context.Context, id string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, exists := m.workers[id]
	if !exists {
		return ErrUnknownWorker
	}
	w.available = available
	return nil
}

func (m *InMemoryMap) AssignDocWorker(ctx context.Context, docID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wid, ok := m.assignments[docID]; ok {
		return wid, nil
	}
	wid, err := m.pickAvailableLocked()
	if err != nil {
		return "", err
	}
	m.assignments[docID] = wid
	return wid, nil
}

func (m *InMemoryMap) GetDocWorker(ctx context.Context, docID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wid, ok := m.assignments[docID]
	return wid, ok, nil
}

func (m *InMemoryMap) ReassignDocWorker(ctx context.Context, docID string) (string, error) {
	m.mu.Lock()
	delete(m.assignments, docID)
	wid, err := m.pickAvailableLocked()
	if err != nil {
		m.mu.Unlock()
		return "", err
	}
	m.assignments[docID] = wid
	m.mu.Unlock()
	return wid, nil
}

// pickAvailableLocked must be called with m.mu held for writing. It
// advances the round-robin cursor across registration order, returning
// the first available worker found.
func (m *InMemoryMap) pickAvailableLocked() (string, error) {
	if len(m.order) == 0 {
		return "", ErrNoAvailableWorkers
	}
	for i := 0; i < len(m.order); i++ {
		idx := (m.cursor + i) % len(m.order)
		id := m.order[idx]
		if w := m.workers[id]; w != nil && w.available {
			m.cursor = (idx + 1) % len(m.order)
			return id, nil
		}
	}
	return "", ErrNoAvailableWorkers
}
