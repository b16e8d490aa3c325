package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"coffee-backend/internal/domain"
)

type MemoryOrderRepo struct {
	mu sync.RWMutex
	m  map[string]*domain.Order
}

func NewMemoryOrderRepo() *MemoryOrderRepo {
	return &MemoryOrderRepo{m: make(map[string]*domain.Order)}
}

func (r *MemoryOrderRepo) Create(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[o.OrderID]; ok {
		return domain.ConflictError("order " + o.OrderID + " already exists")
	}
	o.Version = 1
	r.m[o.OrderID] = o.Clone()
	return nil
}

func (r *MemoryOrderRepo) Get(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.m[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

// Update stores o only when the stored version still equals expected.
func (r *MemoryOrderRepo) Update(_ context.Context, o *domain.Order, expected int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.m[o.OrderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if cur.Version != expected {
		return domain.ErrVersionConflict
	}
	o.Version = expected + 1
	r.m[o.OrderID] = o.Clone()
	return nil
}

// List returns newest first. An empty customerID lists every order.
func (r *MemoryOrderRepo) List(_ context.Context, customerID string, page, pageSize int) ([]domain.Order, int, error) {
	r.mu.RLock()
	all := make([]domain.Order, 0, len(r.m))
	for _, o := range r.m {
		if customerID == "" || o.CustomerID == customerID {
			all = append(all, *o.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].OrderID > all[j].OrderID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

// ListAwaitingPayment returns orders of the given method whose payment is
// still pending, that were created before the cutoff and that carry a MoMo
// requestId to query with. Least recently updated first.
func (r *MemoryOrderRepo) ListAwaitingPayment(_ context.Context, method domain.PaymentMethod, before time.Time, limit int) ([]*domain.Order, error) {
	r.mu.RLock()
	var out []*domain.Order
	for _, o := range r.m {
		if o.PaymentMethod != method || o.PaymentStatus != domain.PaymentPending || !o.CreatedAt.Before(before) {
			continue
		}
		if o.MoMo == nil || o.MoMo.RequestID == "" {
			continue
		}
		out = append(out, o.Clone())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type MemoryCatalog struct {
	mu sync.RWMutex
	m  map[string]domain.Product
}

func NewMemoryCatalog(products ...domain.Product) *MemoryCatalog {
	c := &MemoryCatalog{m: make(map[string]domain.Product)}
	for _, p := range products {
		c.m[p.ID] = p
	}
	return c
}

func (c *MemoryCatalog) Put(_ context.Context, p domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[p.ID] = p
	return nil
}

func (c *MemoryCatalog) Product(_ context.Context, id string) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.m[id]
	if !ok {
		return domain.Product{}, domain.NotFoundError("product " + id)
	}
	return p, nil
}

func (c *MemoryCatalog) Products(_ context.Context) ([]domain.Product, error) {
	c.mu.RLock()
	out := make([]domain.Product, 0, len(c.m))
	for _, p := range c.m {
		out = append(out, p)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
