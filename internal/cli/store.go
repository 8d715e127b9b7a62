package cli

import (
	"context"
	"fmt"

	"github.com/rl1809/order-ledger/internal/adapter/storage"
	"github.com/rl1809/order-ledger/internal/config"
	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/port"
)

type ledgerStore interface {
	port.LedgerRepository
	Migrate(ctx context.Context) error
	CreateProduct(ctx context.Context, p *domain.Product) error
	CreateOrder(ctx context.Context, o *domain.Order) error
}

// openLedger opens the store selected by cfg.DBDriver. The returned close
// function releases the connection pool.
func openLedger(ctx context.Context, cfg config.Config) (ledgerStore, func() error, error) {
	switch cfg.DBDriver {
	case config.DriverMySQL:
		db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewMySQLAdapter(db), db.Close, nil
	case config.DriverSQLite:
		db, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewSQLiteAdapter(db), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}
