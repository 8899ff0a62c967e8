package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rl1809/order-stock/internal/core/domain"
)

var errStorage = errors.New("storage unavailable")

// Mock ProductRepository
type mockProductRepo struct {
	mu        sync.Mutex
	products  map[int64]domain.Product
	saveCalls int
	saveErr   error
}

func newMockProductRepo(products ...domain.Product) *mockProductRepo {
	m := &mockProductRepo{products: make(map[int64]domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepo) FindByIDs(ctx context.Context, ids []int64) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			found = append(found, p)
		}
	}
	return found, nil
}

func (m *mockProductRepo) SaveAll(ctx context.Context, products []domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return nil
}

func (m *mockProductRepo) quantity(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Quantity
}

func (m *mockProductRepo) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCalls
}

// Mock OrderRepository
type mockOrderRepo struct {
	mu     sync.Mutex
	nextID int64
	orders []domain.Order
	err    error
}

func (m *mockOrderRepo) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	saved, err := m.SaveAll(ctx, []domain.Order{order})
	if err != nil {
		return domain.Order{}, err
	}
	return saved[0], nil
}

func (m *mockOrderRepo) SaveAll(ctx context.Context, orders []domain.Order) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	saved := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		m.nextID++
		o.ID = m.nextID
		m.orders = append(m.orders, o)
		saved = append(saved, o)
	}
	return saved, nil
}

func (m *mockOrderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// recordingLocker is a working per-key mutex table that records every call.
type recordingLocker struct {
	mu         sync.Mutex
	locks      map[string]*sync.Mutex
	acquires   map[string]int
	releases   map[string]int
	events     []string
	failOn     string
	releaseErr string
}

func newRecordingLocker() *recordingLocker {
	return &recordingLocker{
		locks:    make(map[string]*sync.Mutex),
		acquires: make(map[string]int),
		releases: make(map[string]int),
	}
}

func (l *recordingLocker) Acquire(ctx context.Context, key string) (string, error) {
	l.mu.Lock()
	if key == l.failOn {
		l.mu.Unlock()
		return "", domain.ErrLockAcquireFailed
	}
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()

	l.mu.Lock()
	l.acquires[key]++
	l.events = append(l.events, "acquire "+key)
	token := fmt.Sprintf("%s#%d", key, l.acquires[key])
	l.mu.Unlock()
	return token, nil
}

func (l *recordingLocker) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if want := fmt.Sprintf("%s#%d", key, l.acquires[key]); token != want {
		return fmt.Errorf("release of %s with token %q, holder is %q", key, token, want)
	}

	l.releases[key]++
	l.events = append(l.events, "release "+key)
	l.locks[key].Unlock()

	if key == l.releaseErr {
		return errors.New("release failed")
	}
	return nil
}

func (l *recordingLocker) balanced() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.acquires) != len(l.releases) {
		return false
	}
	for key, n := range l.acquires {
		if l.releases[key] != n {
			return false
		}
	}
	return true
}

func (l *recordingLocker) totalAcquires() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for _, n := range l.acquires {
		total += n
	}
	return total
}

type stubParser struct {
	cmds []domain.OrderCommand
}

func (p stubParser) Parse(ctx context.Context, data []byte) []domain.OrderCommand {
	return p.cmds
}

type mockPublisher struct {
	mu     sync.Mutex
	orders []domain.Order
	err    error
}

func (p *mockPublisher) PublishOrdersPlaced(ctx context.Context, orders []domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, orders...)
	return p.err
}
