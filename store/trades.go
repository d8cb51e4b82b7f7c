package store

import (
	"database/sql"
	"time"

	"quantdriver/model"
)

// TradeStore persists the append-only qd_strategy_trades ledger.
type TradeStore struct {
	db *sql.DB
}

func (s *TradeStore) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS qd_strategy_trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL DEFAULT '',
			strategy_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			type TEXT NOT NULL,
			price REAL NOT NULL,
			amount REAL NOT NULL,
			value REAL NOT NULL,
			commission REAL NOT NULL DEFAULT 0,
			commission_ccy TEXT NOT NULL DEFAULT '',
			profit REAL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_qd_trades_strategy ON qd_strategy_trades(strategy_id)`)
	return err
}

func (s *TradeStore) Insert(t *model.Trade) error {
	_, err := s.db.Exec(`
		INSERT INTO qd_strategy_trades
			(user_id, strategy_id, symbol, type, price, amount, value, commission, commission_ccy, profit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.UserID, t.StrategyID, t.Symbol, t.Type, t.Price, t.Amount, t.Value, t.Commission, t.CommissionCcy, t.Profit)
	return err
}

// ListForStrategy returns the most recent trades for a strategy, newest
// first, for the trade-history API endpoint and for tests.
func (s *TradeStore) ListForStrategy(strategyID string, limit int) ([]*model.Trade, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, strategy_id, symbol, type, price, amount, value, commission, commission_ccy, profit, created_at
		FROM qd_strategy_trades WHERE strategy_id = ? ORDER BY id DESC LIMIT ?
	`, strategyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Trade
	for rows.Next() {
		var t model.Trade
		var createdAt string
		if err := rows.Scan(&t.ID, &t.UserID, &t.StrategyID, &t.Symbol, &t.Type, &t.Price, &t.Amount,
			&t.Value, &t.Commission, &t.CommissionCcy, &t.Profit, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
		out = append(out, &t)
	}
	return out, rows.Err()
}
