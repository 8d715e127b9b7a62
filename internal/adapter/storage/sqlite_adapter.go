package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// SQLiteAdapter has no row locks. Every transaction is opened with
// BEGIN IMMEDIATE instead, which takes the database write lock up front.
type SQLiteAdapter struct {
	ledger
}

func NewSQLiteAdapter(db *sql.DB) *SQLiteAdapter {
	return &SQLiteAdapter{ledger{
		db:  db,
		now: utcNow,
	}}
}

// OpenSQLite opens (creating if needed) the database file at path with
// WAL journaling, foreign keys, a busy timeout and immediate transactions.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "on")
	params.Set("_txlock", "immediate")

	db, err := sql.Open("sqlite3", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

func (s *SQLiteAdapter) Migrate(ctx context.Context) error {
	return s.migrate(ctx, sqliteSchema)
}
