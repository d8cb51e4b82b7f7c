// Package store is the durable State Store: strategies, positions, trades,
// pending orders, and notifications, all over a single sqlite database
// opened with raw database/sql, no ORM.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store bundles a shared *sql.DB with one sub-store per table family.
type Store struct {
	db *sql.DB

	Strategies    *StrategyStore
	Positions     *PositionStore
	Trades        *TradeStore
	PendingOrders *PendingOrderStore
	Notifications *NotificationStore
}

// Open opens (creating if needed) the sqlite database at path and runs
// every sub-store's table migration.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite does not like concurrent writers
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db}
	s.Strategies = &StrategyStore{db: db}
	s.Positions = &PositionStore{db: db}
	s.Trades = &TradeStore{db: db}
	s.PendingOrders = &PendingOrderStore{db: db}
	s.Notifications = &NotificationStore{db: db}

	for _, initer := range []interface{ initTables() error }{
		s.Strategies, s.Positions, s.Trades, s.PendingOrders, s.Notifications,
	} {
		if err := initer.initTables(); err != nil {
			return nil, fmt.Errorf("init tables: %w", err)
		}
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}
