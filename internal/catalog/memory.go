package catalog

import (
	"context"
	"sort"
	"sync"
)

// MemStore backs tests and local runs without Postgres. The mutex gives the
// same all-or-nothing semantics per write that the SQL store gets from its
// conditional UPDATE.
type MemStore struct {
	mu       sync.Mutex
	products map[string]*Product

	// FailDecrement and FailIncrement force the next matching write to
	// report a storage error; used to exercise compensation paths.
	FailDecrement map[string]error
	FailIncrement map[string]error
}

func NewMemStore(products ...Product) *MemStore {
	m := &MemStore{
		products:      make(map[string]*Product, len(products)),
		FailDecrement: make(map[string]error),
		FailIncrement: make(map[string]error),
	}
	for i := range products {
		p := products[i]
		m.products[p.ID] = &p
	}
	return m
}

func (m *MemStore) Get(_ context.Context, id string) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemStore) List(_ context.Context) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemStore) DecrementStock(_ context.Context, id string, qty int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailDecrement[id]; ok {
		return false, err
	}
	p, ok := m.products[id]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	return true, nil
}

func (m *MemStore) IncrementStock(_ context.Context, id string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailIncrement[id]; ok {
		return err
	}
	p, ok := m.products[id]
	if !ok {
		return ErrNotFound
	}
	p.Stock += qty
	return nil
}

// Stock reports current stock for assertions.
func (m *MemStore) Stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[id]; ok {
		return p.Stock
	}
	return -1
}
