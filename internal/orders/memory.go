package orders

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore backs tests and local runs without Postgres.
type MemStore struct {
	mu     sync.Mutex
	orders map[string]*Order

	// FailInsert forces the next Insert to fail; exercises the
	// compensate-on-persist-failure path.
	FailInsert error
}

func NewMemStore() *MemStore {
	return &MemStore{orders: make(map[string]*Order)}
}

func (m *MemStore) Insert(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailInsert != nil {
		err := m.FailInsert
		m.FailInsert = nil
		return err
	}
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	m.orders[o.ID] = &cp
	return nil
}

func (m *MemStore) Get(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *MemStore) get(id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	return &cp, nil
}

func (m *MemStore) List(_ context.Context) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o)
	}
	sortOrders(out)
	return out, nil
}

func (m *MemStore) ListByUser(_ context.Context, userID string) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sortOrders(out)
	return out, nil
}

func sortOrders(out []Order) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
}

func (m *MemStore) Update(_ context.Context, id string, u Update) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.Status != nil {
		o.Status = *u.Status
	}
	if u.PaymentStatus != nil {
		o.PaymentStatus = *u.PaymentStatus
	}
	if u.ShippingCostCents != nil {
		o.ShippingCostCents = *u.ShippingCostCents
	}
	if u.TotalCents != nil {
		o.TotalCents = *u.TotalCents
	}
	o.UpdatedAt = time.Now().UTC()
	return m.get(id)
}

func (m *MemStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return ErrNotFound
	}
	delete(m.orders, id)
	return nil
}
