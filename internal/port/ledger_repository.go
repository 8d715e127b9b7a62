package port

import (
	"context"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

type LedgerRepository interface {
	// WithinTx runs fn in one transaction. It commits when fn returns nil and
	// rolls back every write otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error

	// GetOrderItem returns nil when the item does not exist
	GetOrderItem(ctx context.Context, id int64) (*domain.OrderItem, error)

	// GetOrder returns nil when the order does not exist
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)

	// GetProduct returns nil when the product does not exist
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)

	// ListOrderItems returns the items of an order ordered by id
	ListOrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error)

	// ListAllOrderItems returns every item ordered by id
	ListAllOrderItems(ctx context.Context) ([]domain.OrderItem, error)
}

// LedgerTx is the set of row operations available inside WithinTx. Lock*
// methods read the row and hold an exclusive lock on it until the
// transaction ends; they return nil when the row does not exist.
type LedgerTx interface {
	LockOrderItem(ctx context.Context, id int64) (*domain.OrderItem, error)
	LockOrder(ctx context.Context, id int64) (*domain.Order, error)
	LockProduct(ctx context.Context, id int64) (*domain.Product, error)

	// InsertOrderItem assigns ID, CreatedAt and UpdatedAt
	InsertOrderItem(ctx context.Context, item *domain.OrderItem) error

	// UpdateOrderItemQuantity persists item.Quantity and refreshes UpdatedAt
	UpdateOrderItemQuantity(ctx context.Context, item *domain.OrderItem) error

	DeleteOrderItem(ctx context.Context, id int64) error

	// UpdateProductStock persists QuantityInStock guarded by product.Version
	UpdateProductStock(ctx context.Context, product *domain.Product) error

	// UpdateOrderTotal persists TotalPrice guarded by order.Version
	UpdateOrderTotal(ctx context.Context, order *domain.Order) error
}
