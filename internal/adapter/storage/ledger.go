package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/port"
)

var ErrOptimisticLock = fmt.Errorf("optimistic lock conflict: %w", domain.ErrConflict)

const (
	orderItemColumns = `id, order_id, product_id, quantity, unit_price, created_at, updated_at`
	orderColumns     = `id, user_id, customer_name, customer_email, order_date, total_price, version, created_at, updated_at`
	productColumns   = `id, name, description, price, quantity_in_stock, version, created_at, updated_at`
)

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ledger holds the SQL shared by the MySQL and SQLite adapters. lockClause is
// appended to row reads inside a transaction.
type ledger struct {
	db         *sql.DB
	lockClause string
	txOptions  *sql.TxOptions
	now        func() time.Time
}

func (l *ledger) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.LedgerTx) error) error {
	tx, err := l.db.BeginTx(ctx, l.txOptions)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &ledgerTx{q: tx, lockClause: l.lockClause, now: l.now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (l *ledger) GetOrderItem(ctx context.Context, id int64) (*domain.OrderItem, error) {
	return getOrderItem(ctx, l.db, id, "")
}

func (l *ledger) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return getOrder(ctx, l.db, id, "")
}

func (l *ledger) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return getProduct(ctx, l.db, id, "")
}

func (l *ledger) ListOrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	return l.queryOrderItems(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
}

func (l *ledger) ListAllOrderItems(ctx context.Context) ([]domain.OrderItem, error) {
	return l.queryOrderItems(ctx, `SELECT `+orderItemColumns+` FROM order_items ORDER BY id`)
}

func (l *ledger) queryOrderItems(ctx context.Context, query string, args ...any) ([]domain.OrderItem, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := []domain.OrderItem{}
	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

// CreateProduct inserts a catalog product. Catalog management lives outside
// this service; the method backs seeding and tests.
func (l *ledger) CreateProduct(ctx context.Context, p *domain.Product) error {
	now := l.now()
	result, err := l.db.ExecContext(ctx, `
		INSERT INTO products (name, description, price, quantity_in_stock, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		p.Name, p.Description, p.Price, p.QuantityInStock, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("product id: %w", err)
	}
	p.ID, p.Version, p.CreatedAt, p.UpdatedAt = id, 0, now, now
	return nil
}

// CreateOrder inserts an empty order with a zero total.
func (l *ledger) CreateOrder(ctx context.Context, o *domain.Order) error {
	now := l.now()
	if o.Date.IsZero() {
		o.Date = now
	}
	o.TotalPrice = decimal.Zero

	result, err := l.db.ExecContext(ctx, `
		INSERT INTO orders (user_id, customer_name, customer_email, order_date, total_price, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		o.UserID, o.CustomerName, o.CustomerEmail, o.Date, o.TotalPrice, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	o.ID, o.Version, o.CreatedAt, o.UpdatedAt = id, 0, now, now
	return nil
}

func (l *ledger) migrate(ctx context.Context, schema string) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

type ledgerTx struct {
	q          queryer
	lockClause string
	now        func() time.Time
}

func (t *ledgerTx) LockOrderItem(ctx context.Context, id int64) (*domain.OrderItem, error) {
	return getOrderItem(ctx, t.q, id, t.lockClause)
}

func (t *ledgerTx) LockOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return getOrder(ctx, t.q, id, t.lockClause)
}

func (t *ledgerTx) LockProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return getProduct(ctx, t.q, id, t.lockClause)
}

func (t *ledgerTx) InsertOrderItem(ctx context.Context, item *domain.OrderItem) error {
	now := t.now()
	result, err := t.q.ExecContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("order item id: %w", err)
	}
	item.ID, item.CreatedAt, item.UpdatedAt = id, now, now
	return nil
}

func (t *ledgerTx) UpdateOrderItemQuantity(ctx context.Context, item *domain.OrderItem) error {
	now := t.now()
	result, err := t.q.ExecContext(ctx, `
		UPDATE order_items SET quantity = ?, updated_at = ? WHERE id = ?`,
		item.Quantity, now, item.ID,
	)
	if err != nil {
		return fmt.Errorf("update order item: %w", err)
	}

	if err := expectOneRow(result, "order item"); err != nil {
		return err
	}
	item.UpdatedAt = now
	return nil
}

func (t *ledgerTx) DeleteOrderItem(ctx context.Context, id int64) error {
	result, err := t.q.ExecContext(ctx, `DELETE FROM order_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete order item: %w", err)
	}
	return expectOneRow(result, "order item")
}

func (t *ledgerTx) UpdateProductStock(ctx context.Context, p *domain.Product) error {
	now := t.now()
	result, err := t.q.ExecContext(ctx, `
		UPDATE products
		SET quantity_in_stock = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		p.QuantityInStock, now, p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if err := expectVersionMatch(result, "product"); err != nil {
		return err
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

func (t *ledgerTx) UpdateOrderTotal(ctx context.Context, o *domain.Order) error {
	now := t.now()
	result, err := t.q.ExecContext(ctx, `
		UPDATE orders
		SET total_price = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		o.TotalPrice, now, o.ID, o.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if err := expectVersionMatch(result, "order"); err != nil {
		return err
	}
	o.Version++
	o.UpdatedAt = now
	return nil
}

func getOrderItem(ctx context.Context, q queryer, id int64, lockClause string) (*domain.OrderItem, error) {
	item, err := scanOrderItem(q.QueryRowContext(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE id = ?`+lockClause, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order item: %w", err)
	}
	return item, nil
}

func getOrder(ctx context.Context, q queryer, id int64, lockClause string) (*domain.Order, error) {
	var o domain.Order
	err := q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`+lockClause, id,
	).Scan(&o.ID, &o.UserID, &o.CustomerName, &o.CustomerEmail, &o.Date,
		&o.TotalPrice, &o.Version, &o.CreatedAt, &o.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return &o, nil
}

func getProduct(ctx context.Context, q queryer, id int64, lockClause string) (*domain.Product, error) {
	var p domain.Product
	err := q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`+lockClause, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.QuantityInStock,
		&p.Version, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func scanOrderItem(row rowScanner) (*domain.OrderItem, error) {
	var item domain.OrderItem
	err := row.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity,
		&item.UnitPrice, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func expectOneRow(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if rows != 1 {
		return fmt.Errorf("%s: expected 1 row affected, got %d", what, rows)
	}
	return nil
}

// expectVersionMatch reports ErrOptimisticLock when a version-guarded update
// matched no row.
func expectVersionMatch(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if rows == 0 {
		return ErrOptimisticLock
	}
	return nil
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
