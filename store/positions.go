package store

import (
	"database/sql"
	"time"

	"quantdriver/model"
)

// PositionStore persists qd_strategy_positions: at most one row per
// (strategy_id, symbol, side).
type PositionStore struct {
	db *sql.DB
}

func (s *PositionStore) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS qd_strategy_positions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL DEFAULT '',
			strategy_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			size REAL NOT NULL DEFAULT 0,
			entry_price REAL NOT NULL DEFAULT 0,
			current_price REAL NOT NULL DEFAULT 0,
			highest_price REAL NOT NULL DEFAULT 0,
			lowest_price REAL NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(strategy_id, symbol, side)
		)
	`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_qd_positions_strategy ON qd_strategy_positions(strategy_id)`)
	return err
}

// Get returns the single open position for (strategy_id, symbol), if any,
// regardless of side (the state machine guarantees single-direction).
func (s *PositionStore) Get(strategyID, symbol string) (*model.Position, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, strategy_id, symbol, side, size, entry_price, current_price,
		       highest_price, lowest_price, updated_at
		FROM qd_strategy_positions WHERE strategy_id = ? AND symbol = ?
	`, strategyID, symbol)
	return scanPosition(row)
}

func scanPosition(row *sql.Row) (*model.Position, error) {
	var p model.Position
	var updatedAt string
	err := row.Scan(&p.ID, &p.UserID, &p.StrategyID, &p.Symbol, &p.Side, &p.Size, &p.EntryPrice,
		&p.CurrentPrice, &p.HighestPrice, &p.LowestPrice, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.UpdatedAt, _ = time.Parse("2006-01-02 15:04:05", updatedAt)
	return &p, nil
}

// Open creates the position row on the first fill of an open_* signal.
func (s *PositionStore) Open(userID, strategyID, symbol string, side model.Side, size, price float64) error {
	_, err := s.db.Exec(`
		INSERT INTO qd_strategy_positions
			(user_id, strategy_id, symbol, side, size, entry_price, current_price, highest_price, lowest_price, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(strategy_id, symbol, side) DO UPDATE SET
			size = excluded.size, entry_price = excluded.entry_price,
			current_price = excluded.current_price, highest_price = excluded.highest_price,
			lowest_price = excluded.lowest_price, updated_at = CURRENT_TIMESTAMP
	`, userID, strategyID, symbol, side, size, price, price, price, price)
	return err
}

// Add applies a weighted-average-entry add-on fill.
func (s *PositionStore) Add(strategyID, symbol string, side model.Side, addSize, price float64) error {
	p, err := s.Get(strategyID, symbol)
	if err != nil {
		return err
	}
	if p == nil {
		return s.Open("", strategyID, symbol, side, addSize, price)
	}
	newSize := p.Size + addSize
	newEntry := (p.EntryPrice*p.Size + price*addSize) / newSize
	highest := p.HighestPrice
	if price > highest {
		highest = price
	}
	lowest := p.LowestPrice
	if lowest == 0 || price < lowest {
		lowest = price
	}
	_, err = s.db.Exec(`
		UPDATE qd_strategy_positions
		SET size = ?, entry_price = ?, current_price = ?, highest_price = ?, lowest_price = ?, updated_at = CURRENT_TIMESTAMP
		WHERE strategy_id = ? AND symbol = ? AND side = ?
	`, newSize, newEntry, price, highest, lowest, strategyID, symbol, side)
	return err
}

// Reduce decrements size, leaving entry_price unchanged. If the remaining
// size is at or below 0.1% of the prior size it is treated as fully closed.
func (s *PositionStore) Reduce(strategyID, symbol string, side model.Side, reduceSize, price float64) error {
	p, err := s.Get(strategyID, symbol)
	if err != nil {
		return err
	}
	if p == nil {
		return nil
	}
	newSize := p.Size - reduceSize
	if newSize <= 0.001*p.Size {
		return s.Close(strategyID, symbol, side)
	}
	_, err = s.db.Exec(`
		UPDATE qd_strategy_positions SET size = ?, current_price = ?, updated_at = CURRENT_TIMESTAMP
		WHERE strategy_id = ? AND symbol = ? AND side = ?
	`, newSize, price, strategyID, symbol, side)
	return err
}

// Close deletes the position row, as required by the close_* transition.
func (s *PositionStore) Close(strategyID, symbol string, side model.Side) error {
	_, err := s.db.Exec(`DELETE FROM qd_strategy_positions WHERE strategy_id = ? AND symbol = ? AND side = ?`,
		strategyID, symbol, side)
	return err
}

// UpdateCurrentPrice refreshes the mark for an open position, extending
// highest_price/lowest_price as needed for trailing-stop tracking.
func (s *PositionStore) UpdateCurrentPrice(strategyID, symbol string, side model.Side, price float64) error {
	_, err := s.db.Exec(`
		UPDATE qd_strategy_positions
		SET current_price = ?,
		    highest_price = MAX(highest_price, ?),
		    lowest_price = CASE WHEN lowest_price = 0 THEN ? ELSE MIN(lowest_price, ?) END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE strategy_id = ? AND symbol = ? AND side = ?
	`, price, price, price, price, strategyID, symbol, side)
	return err
}

// ListForStrategy returns every open position for a strategy, used by
// reconciliation.
func (s *PositionStore) ListForStrategy(strategyID string) ([]*model.Position, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, strategy_id, symbol, side, size, entry_price, current_price,
		       highest_price, lowest_price, updated_at
		FROM qd_strategy_positions WHERE strategy_id = ?
	`, strategyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Position
	for rows.Next() {
		var p model.Position
		var updatedAt string
		if err := rows.Scan(&p.ID, &p.UserID, &p.StrategyID, &p.Symbol, &p.Side, &p.Size, &p.EntryPrice,
			&p.CurrentPrice, &p.HighestPrice, &p.LowestPrice, &updatedAt); err != nil {
			return nil, err
		}
		p.UpdatedAt, _ = time.Parse("2006-01-02 15:04:05", updatedAt)
		out = append(out, &p)
	}
	return out, rows.Err()
}

// SetSize overwrites the size of a local row to match the venue's reported
// size, the reconciliation "update" branch.
func (s *PositionStore) SetSize(strategyID, symbol string, side model.Side, size float64) error {
	_, err := s.db.Exec(`
		UPDATE qd_strategy_positions SET size = ?, updated_at = CURRENT_TIMESTAMP
		WHERE strategy_id = ? AND symbol = ? AND side = ?
	`, size, strategyID, symbol, side)
	return err
}
