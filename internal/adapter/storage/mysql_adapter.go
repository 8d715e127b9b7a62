package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

//go:embed schema/mysql.sql
var mysqlSchema string

// MySQLAdapter locks rows with SELECT ... FOR UPDATE, so concurrent writers
// touching the same order or product queue behind each other while writers on
// disjoint rows proceed in parallel.
type MySQLAdapter struct {
	ledger
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{ledger{
		db:         db,
		lockClause: " FOR UPDATE",
		txOptions:  &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		now:        utcNow,
	}}
}

// OpenMySQL opens a pool for dsn. parseTime and clientFoundRows are forced on:
// the adapter scans DATETIME columns into time.Time and relies on matched-row
// counts for its version guards.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	return m.migrate(ctx, mysqlSchema)
}
