package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/port"
)

var errInjected = errors.New("injected storage failure")

// mockLedger serialises transactions on one mutex and applies a transaction's
// writes only when fn returns nil.
type mockLedger struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	orders   map[int64]domain.Order
	items    map[int64]domain.OrderItem
	nextID   int64

	// failOn makes the named LedgerTx method return errInjected
	failOn string
	// block makes WithinTx wait for ctx to end
	block bool
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		products: make(map[int64]domain.Product),
		orders:   make(map[int64]domain.Order),
		items:    make(map[int64]domain.OrderItem),
	}
}

func (m *mockLedger) addProduct(p domain.Product) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	m.products[p.ID] = p
	return p
}

func (m *mockLedger) addOrder(o domain.Order) domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	o.ID = m.nextID
	m.orders[o.ID] = o
	return o
}

func (m *mockLedger) setPrice(productID int64, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.products[productID]
	p.Price = mustDecimal(price)
	m.products[productID] = p
}

func (m *mockLedger) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}

	tx := &mockTx{
		products: clone(m.products),
		orders:   clone(m.orders),
		items:    clone(m.items),
		nextID:   m.nextID,
		failOn:   m.failOn,
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	m.products, m.orders, m.items, m.nextID = tx.products, tx.orders, tx.items, tx.nextID
	return nil
}

func (m *mockLedger) GetOrderItem(ctx context.Context, id int64) (*domain.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lookup(m.items, id), nil
}

func (m *mockLedger) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lookup(m.orders, id), nil
}

func (m *mockLedger) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lookup(m.products, id), nil
}

func (m *mockLedger) ListOrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := []domain.OrderItem{}
	for _, item := range m.items {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *mockLedger) ListAllOrderItems(ctx context.Context) ([]domain.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failOn == "ListAllOrderItems" {
		return nil, errInjected
	}
	items := make([]domain.OrderItem, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

type mockTx struct {
	products map[int64]domain.Product
	orders   map[int64]domain.Order
	items    map[int64]domain.OrderItem
	nextID   int64
	failOn   string
}

func (t *mockTx) fail(method string) error {
	if t.failOn == method {
		return errInjected
	}
	return nil
}

func (t *mockTx) LockOrderItem(ctx context.Context, id int64) (*domain.OrderItem, error) {
	if err := t.fail("LockOrderItem"); err != nil {
		return nil, err
	}
	return lookup(t.items, id), nil
}

func (t *mockTx) LockOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if err := t.fail("LockOrder"); err != nil {
		return nil, err
	}
	return lookup(t.orders, id), nil
}

func (t *mockTx) LockProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if err := t.fail("LockProduct"); err != nil {
		return nil, err
	}
	return lookup(t.products, id), nil
}

func (t *mockTx) InsertOrderItem(ctx context.Context, item *domain.OrderItem) error {
	if err := t.fail("InsertOrderItem"); err != nil {
		return err
	}
	t.nextID++
	now := time.Now().UTC()
	item.ID, item.CreatedAt, item.UpdatedAt = t.nextID, now, now
	t.items[item.ID] = *item
	return nil
}

func (t *mockTx) UpdateOrderItemQuantity(ctx context.Context, item *domain.OrderItem) error {
	if err := t.fail("UpdateOrderItemQuantity"); err != nil {
		return err
	}
	stored, ok := t.items[item.ID]
	if !ok {
		return errors.New("order item missing")
	}
	stored.Quantity = item.Quantity
	stored.UpdatedAt = time.Now().UTC()
	t.items[item.ID] = stored
	item.UpdatedAt = stored.UpdatedAt
	return nil
}

func (t *mockTx) DeleteOrderItem(ctx context.Context, id int64) error {
	if err := t.fail("DeleteOrderItem"); err != nil {
		return err
	}
	if _, ok := t.items[id]; !ok {
		return errors.New("order item missing")
	}
	delete(t.items, id)
	return nil
}

func (t *mockTx) UpdateProductStock(ctx context.Context, p *domain.Product) error {
	if err := t.fail("UpdateProductStock"); err != nil {
		return err
	}
	stored := t.products[p.ID]
	if stored.Version != p.Version {
		return domain.ErrConflict
	}
	p.Version++
	stored.QuantityInStock, stored.Version = p.QuantityInStock, p.Version
	t.products[p.ID] = stored
	return nil
}

func (t *mockTx) UpdateOrderTotal(ctx context.Context, o *domain.Order) error {
	if err := t.fail("UpdateOrderTotal"); err != nil {
		return err
	}
	stored := t.orders[o.ID]
	if stored.Version != o.Version {
		return domain.ErrConflict
	}
	o.Version++
	stored.TotalPrice, stored.Version = o.TotalPrice, o.Version
	t.orders[o.ID] = stored
	return nil
}

func clone[V any](m map[int64]V) map[int64]V {
	out := make(map[int64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func lookup[V any](m map[int64]V, id int64) *V {
	v, ok := m[id]
	if !ok {
		return nil
	}
	return &v
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	err            error
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{idempotencySet: make(map[string]bool)}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return false, m.err
	}
	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.OrderItemEvent
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, event domain.OrderItemEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) published() []domain.OrderItemEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OrderItemEvent(nil), m.events...)
}
