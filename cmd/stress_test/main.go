package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/order-ledger/internal/adapter/storage"
	"github.com/rl1809/order-ledger/internal/config"
	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/core/service"
	"github.com/rl1809/order-ledger/internal/port"
)

const (
	initialStock  = 20
	totalRequests = 50
	unitPrice     = "1.25"
)

type stressStore interface {
	port.LedgerRepository
	Migrate(ctx context.Context) error
	CreateProduct(ctx context.Context, p *domain.Product) error
	CreateOrder(ctx context.Context, o *domain.Order) error
}

func main() {
	ctx := context.Background()
	logger := zap.Must(zap.NewDevelopment())
	defer logger.Sync()

	store, cleanup, err := openStore(ctx)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer cleanup()

	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("failed to migrate", zap.Error(err))
	}

	product := &domain.Product{Name: "stress-item", Price: decimal.RequireFromString(unitPrice), QuantityInStock: initialStock}
	if err := store.CreateProduct(ctx, product); err != nil {
		logger.Fatal("failed to create product", zap.Error(err))
	}
	orders := make([]*domain.Order, 4)
	for i := range orders {
		orders[i] = &domain.Order{UserID: fmt.Sprintf("user-%d", i), CustomerName: "stress", CustomerEmail: "stress@example.com"}
		if err := store.CreateOrder(ctx, orders[i]); err != nil {
			logger.Fatal("failed to create order", zap.Error(err))
		}
	}

	orderItems := service.NewOrderItemService(store)

	var successCount, rejectCount, failCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			_, err := orderItems.Create(ctx, domain.Caller{ID: fmt.Sprintf("user-%d", i)}, service.CreateOrderItemInput{
				OrderID:   orders[i%len(orders)].ID,
				ProductID: product.ID,
				Quantity:  1,
			})
			switch domain.KindOf(err) {
			case "":
				successCount.Add(1)
			case domain.KindInsufficientStock:
				rejectCount.Add(1)
			default:
				failCount.Add(1)
				logger.Error("create failed", zap.Error(err))
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success, rejected, failed := successCount.Load(), rejectCount.Load(), failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Rejected:         %d\n", rejected)
	fmt.Printf("Failed:           %d\n", failed)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	ok := true
	if success == initialStock && rejected == totalRequests-initialStock && failed == 0 {
		fmt.Printf("PASS: Exactly %d items created, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		ok = false
		fmt.Printf("FAIL: Expected %d success/%d rejected, got %d/%d (%d failed)\n",
			initialStock, totalRequests-initialStock, success, rejected, failed)
	}

	final, err := store.GetProduct(ctx, product.ID)
	if err != nil {
		logger.Fatal("failed to read product", zap.Error(err))
	}
	fmt.Printf("Final Stock:      %d\n", final.QuantityInStock)
	if final.QuantityInStock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		ok = false
		fmt.Printf("FAIL: Expected stock 0, got %d\n", final.QuantityInStock)
	}

	grand := decimal.Zero
	for _, o := range orders {
		got, err := store.GetOrder(ctx, o.ID)
		if err != nil {
			logger.Fatal("failed to read order", zap.Error(err))
		}
		grand = grand.Add(got.TotalPrice)
	}
	want := decimal.RequireFromString(unitPrice).Mul(decimal.NewFromInt(initialStock))
	fmt.Printf("Sum of totals:    %s\n", grand.StringFixed(2))
	if grand.Equal(want) {
		fmt.Println("PASS: Order totals match reserved stock")
	} else {
		ok = false
		fmt.Printf("FAIL: Expected totals %s\n", want.StringFixed(2))
	}

	if !ok {
		os.Exit(1)
	}
}

// openStore uses the configured MySQL database when DB_DRIVER=mysql and a
// throwaway SQLite file otherwise.
func openStore(ctx context.Context) (stressStore, func(), error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, nil, err
	}

	if cfg.DBDriver == config.DriverMySQL {
		db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewMySQLAdapter(db), func() { db.Close() }, nil
	}

	dir, err := os.MkdirTemp("", "order-ledger-stress")
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.OpenSQLite(ctx, filepath.Join(dir, "stress.db"))
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil, err
	}
	return storage.NewSQLiteAdapter(db), func() {
		db.Close()
		os.RemoveAll(dir)
	}, nil
}
