package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/order-placement/internal/clock"
	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/port"
)

// MemoryAdapter keeps products, orders and line items in process. One
// transaction at a time works on a private copy of the stock which replaces
// the shared state on commit.
type MemoryAdapter struct {
	clock clock.Clock
	txSem chan struct{}

	mu          sync.RWMutex
	products    map[int64]domain.Product
	orders      map[int64]time.Time
	items       []domain.OrderItem
	nextOrderID int64
}

func NewMemoryAdapter(clk clock.Clock, products ...domain.Product) *MemoryAdapter {
	m := &MemoryAdapter{
		clock:    clk,
		txSem:    make(chan struct{}, 1),
		products: make(map[int64]domain.Product),
		orders:   make(map[int64]time.Time),
	}
	m.Seed(products...)
	return m
}

// Seed inserts or replaces products. It waits for an open transaction to finish.
func (m *MemoryAdapter) Seed(products ...domain.Product) {
	m.txSem <- struct{}{}
	defer func() { <-m.txSem }()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	for _, p := range products {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		m.products[p.ID] = p
	}
}

func (m *MemoryAdapter) Begin(ctx context.Context) (port.OrderTx, error) {
	select {
	case m.txSem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrConnectionFailure, ctx.Err())
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot := make(map[int64]domain.Product, len(m.products))
	for id, p := range m.products {
		snapshot[id] = p
	}
	return &memoryTx{store: m, products: snapshot}, nil
}

func (m *MemoryAdapter) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryAdapter) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryAdapter) ListStock(ctx context.Context) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	products := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// OrderItems returns the committed line items of one order in insertion order.
func (m *MemoryAdapter) OrderItems(orderID int64) []domain.OrderItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var items []domain.OrderItem
	for _, item := range m.items {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	return items
}

func (m *MemoryAdapter) OrderCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

type memoryTx struct {
	store    *MemoryAdapter
	products map[int64]domain.Product
	orderID  int64
	created  time.Time
	items    []domain.OrderItem
	done     bool
	released bool
}

func (t *memoryTx) AllocateOrder(ctx context.Context) (int64, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return 0, time.Time{}, err
	}
	t.store.mu.Lock()
	t.store.nextOrderID++
	t.orderID = t.store.nextOrderID
	t.store.mu.Unlock()

	t.created = t.store.clock.Now()
	return t.orderID, t.created, nil
}

func (t *memoryTx) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := t.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *memoryTx) DeductStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, ok := t.products[productID]
	if !ok || p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	p.UpdatedAt = t.store.clock.Now()
	t.products[productID] = p
	return true, nil
}

func (t *memoryTx) InsertItems(ctx context.Context, items []domain.OrderItem) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	for _, item := range items {
		if _, ok := t.products[item.ProductID]; !ok {
			return 0, fmt.Errorf("insert order item: %w", &domain.ProductNotFoundError{ProductID: item.ProductID})
		}
	}
	t.items = append(t.items, items...)
	return len(items), nil
}

func (t *memoryTx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.products = t.products
	t.store.orders[t.orderID] = t.created
	t.store.items = append(t.store.items, t.items...)
	return nil
}

func (t *memoryTx) Rollback(ctx context.Context) error {
	t.done = true
	t.products = nil
	t.items = nil
	return nil
}

func (t *memoryTx) Close() error {
	if t.released {
		return nil
	}
	t.released = true
	<-t.store.txSem
	return nil
}
