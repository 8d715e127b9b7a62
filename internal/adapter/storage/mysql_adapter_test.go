package storage

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/port"
)

func getMySQLAdapter(t *testing.T) (*MySQLAdapter, *sql.DB) {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/orderledger"
	}

	ctx := context.Background()
	db, err := OpenMySQL(ctx, dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	adapter := NewMySQLAdapter(db)
	require.NoError(t, adapter.Migrate(ctx))
	return adapter, db
}

func TestMySQLWithinTx_RollbackOnError(t *testing.T) {
	adapter, db := getMySQLAdapter(t)
	ctx := context.Background()

	product := &domain.Product{Name: "mysql-test", Price: decimal.RequireFromString("10.00"), QuantityInStock: 10}
	require.NoError(t, adapter.CreateProduct(ctx, product))
	order := &domain.Order{UserID: "test-user", CustomerName: "test", CustomerEmail: "test@example.com"}
	require.NoError(t, adapter.CreateOrder(ctx, order))
	defer func() {
		db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, order.ID)
		db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, order.ID)
		db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, product.ID)
	}()

	err := adapter.WithinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		p, err := tx.LockProduct(ctx, product.ID)
		if err != nil {
			return err
		}
		p.QuantityInStock = 1
		if err := tx.UpdateProductStock(ctx, p); err != nil {
			return err
		}
		return domain.ErrInsufficientStock
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	var stock int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT quantity_in_stock FROM products WHERE id = ?`, product.ID).Scan(&stock))
	assert.Equal(t, 10, stock)
}

func TestMySQLLockProduct_SerializesWriters(t *testing.T) {
	adapter, db := getMySQLAdapter(t)
	ctx := context.Background()

	initialStock := 20
	product := &domain.Product{Name: "mysql-lock-test", Price: decimal.RequireFromString("1.00"), QuantityInStock: initialStock}
	require.NoError(t, adapter.CreateProduct(ctx, product))
	defer db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, product.ID)

	var wg sync.WaitGroup
	for i := 0; i < initialStock; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := adapter.WithinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
				p, err := tx.LockProduct(ctx, product.ID)
				if err != nil {
					return err
				}
				p.QuantityInStock--
				return tx.UpdateProductStock(ctx, p)
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	var stock, version int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT quantity_in_stock, version FROM products WHERE id = ?`, product.ID).Scan(&stock, &version))
	assert.Equal(t, 0, stock)
	assert.Equal(t, initialStock, version)
}
