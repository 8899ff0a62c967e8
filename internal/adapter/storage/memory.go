package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/order-stock/internal/core/domain"
)

// MemoryProductStore keeps products in a map. Returned products are copies.
type MemoryProductStore struct {
	mu       sync.RWMutex
	products map[int64]domain.Product
}

func NewMemoryProductStore(products ...domain.Product) *MemoryProductStore {
	s := &MemoryProductStore{products: make(map[int64]domain.Product, len(products))}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *MemoryProductStore) FindByIDs(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (s *MemoryProductStore) SaveAll(ctx context.Context, products []domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, p := range products {
		if existing, ok := s.products[p.ID]; ok && p.CreatedAt.IsZero() {
			p.CreatedAt = existing.CreatedAt
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		s.products[p.ID] = p
	}
	return nil
}

// Quantity returns the stored stock of a product and whether it exists.
func (s *MemoryProductStore) Quantity(id int64) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	return p.Quantity, ok
}

// MemoryOrderStore assigns sequential ids starting at 1.
type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders []domain.Order
	nextID int64
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{nextID: 1}
}

func (s *MemoryOrderStore) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	saved, err := s.SaveAll(ctx, []domain.Order{order})
	if err != nil {
		return domain.Order{}, err
	}
	return saved[0], nil
}

func (s *MemoryOrderStore) SaveAll(ctx context.Context, orders []domain.Order) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		o.ID = s.nextID
		s.nextID++
		o.Items = append([]domain.OrderItem(nil), o.Items...)
		s.orders = append(s.orders, o)
		saved = append(saved, o)
	}
	return saved, nil
}

func (s *MemoryOrderStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *MemoryOrderStore) All() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Order(nil), s.orders...)
}
