package store

import (
	"database/sql"
	"time"

	"quantdriver/model"
)

// PendingOrderStore persists the durable dispatch queue. Claims use a
// compare-and-set UPDATE so only one Worker poller wins a given row.
type PendingOrderStore struct {
	db *sql.DB
}

func (s *PendingOrderStore) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS pending_orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL DEFAULT '',
			strategy_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			signal_type TEXT NOT NULL,
			signal_ts DATETIME NOT NULL,
			market_type TEXT NOT NULL DEFAULT 'swap',
			order_type TEXT NOT NULL DEFAULT 'maker',
			amount REAL NOT NULL DEFAULT 0,
			price REAL NOT NULL DEFAULT 0,
			execution_mode TEXT NOT NULL DEFAULT 'signal',
			status TEXT NOT NULL DEFAULT 'pending',
			priority INTEGER NOT NULL DEFAULT 0,
			attempts INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL DEFAULT 3,
			last_error TEXT NOT NULL DEFAULT '',
			payload_json TEXT NOT NULL DEFAULT '{}',
			exchange_id TEXT NOT NULL DEFAULT '',
			exchange_order_id TEXT NOT NULL DEFAULT '',
			exchange_response_json TEXT NOT NULL DEFAULT '',
			filled REAL NOT NULL DEFAULT 0,
			avg_price REAL NOT NULL DEFAULT 0,
			dispatch_note TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			processed_at DATETIME,
			sent_at DATETIME,
			executed_at DATETIME
		)
	`)
	if err != nil {
		return err
	}
	_, _ = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_pending_orders_poll ON pending_orders(status, priority, id)`)
	_, _ = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_pending_orders_dedup ON pending_orders(strategy_id, symbol, signal_type, signal_ts)`)
	_, err = s.db.Exec(`
		CREATE TRIGGER IF NOT EXISTS update_pending_orders_updated_at
		AFTER UPDATE ON pending_orders
		BEGIN
			UPDATE pending_orders SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
		END
	`)
	return err
}

// Enqueue inserts a new dispatch row.
func (s *PendingOrderStore) Enqueue(o *model.PendingOrder) (int64, error) {
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 3
	}
	res, err := s.db.Exec(`
		INSERT INTO pending_orders
			(user_id, strategy_id, symbol, signal_type, signal_ts, market_type, order_type, amount,
			 price, execution_mode, status, priority, max_attempts, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?, ?)
	`, o.UserID, o.StrategyID, o.Symbol, o.SignalType, o.SignalTS, o.MarketType, o.OrderType, o.Amount,
		o.Price, o.ExecutionMode, model.SignalPriority(o.SignalType), o.MaxAttempts, o.PayloadJSON)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ExistsExactDedup implements the DB-side strict same-candle guard applied
// to open_long/open_short: a prior row with the identical dedup key means
// skip.
func (s *PendingOrderStore) ExistsExactDedup(strategyID, symbol string, signalType model.SignalType, signalTS time.Time) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(1) FROM pending_orders
		WHERE strategy_id = ? AND symbol = ? AND signal_type = ? AND signal_ts = ?
	`, strategyID, symbol, signalType, signalTS).Scan(&n)
	return n > 0, err
}

// RecentCooldownActive implements the looser 30s cooldown guard applied to
// every other signal type: true if the most recent matching row is still
// pending/processing, or is younger than the cooldown window.
func (s *PendingOrderStore) RecentCooldownActive(strategyID, symbol string, signalType model.SignalType, cooldown time.Duration) (bool, error) {
	var status string
	var createdAt string
	err := s.db.QueryRow(`
		SELECT status, created_at FROM pending_orders
		WHERE strategy_id = ? AND symbol = ? AND signal_type = ?
		ORDER BY id DESC LIMIT 1
	`, strategyID, symbol, signalType).Scan(&status, &createdAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if status == string(model.PendingStatusPending) || status == string(model.PendingStatusProcessing) {
		return true, nil
	}
	ts, perr := time.Parse("2006-01-02 15:04:05", createdAt)
	if perr != nil {
		return false, nil
	}
	return time.Since(ts) < cooldown, nil
}

// RequeueStale reclaims processing rows stuck past staleAfter, an
// idempotent crash-recovery sweep run before every poll.
func (s *PendingOrderStore) RequeueStale(staleAfter time.Duration) (int64, error) {
	cutoff := time.Now().Add(-staleAfter).UTC().Format("2006-01-02 15:04:05")
	res, err := s.db.Exec(`
		UPDATE pending_orders
		SET status = 'pending',
		    dispatch_note = CASE WHEN dispatch_note = '' THEN 'requeued_stale_processing' ELSE dispatch_note END
		WHERE status = 'processing' AND updated_at < ? AND attempts < max_attempts
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PollBatch returns up to limit pending, retryable rows in dispatch order.
func (s *PendingOrderStore) PollBatch(limit int) ([]*model.PendingOrder, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, strategy_id, symbol, signal_type, signal_ts, market_type, order_type,
		       amount, price, execution_mode, status, priority, attempts, max_attempts, last_error,
		       payload_json, exchange_id, exchange_order_id, filled, avg_price, dispatch_note, created_at
		FROM pending_orders
		WHERE status = 'pending' AND attempts < max_attempts
		ORDER BY priority DESC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.PendingOrder
	for rows.Next() {
		var o model.PendingOrder
		var signalTS, createdAt string
		if err := rows.Scan(&o.ID, &o.UserID, &o.StrategyID, &o.Symbol, &o.SignalType, &signalTS,
			&o.MarketType, &o.OrderType, &o.Amount, &o.Price, &o.ExecutionMode, &o.Status, &o.Priority,
			&o.Attempts, &o.MaxAttempts, &o.LastError, &o.PayloadJSON, &o.ExchangeID, &o.ExchangeOrderID,
			&o.Filled, &o.AvgPrice, &o.DispatchNote, &createdAt); err != nil {
			return nil, err
		}
		o.SignalTS, _ = time.Parse("2006-01-02 15:04:05", signalTS)
		o.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
		out = append(out, &o)
	}
	return out, rows.Err()
}

// ListForStrategy returns the most recent pending_orders rows for a single
// strategy, newest first, for the API's queue-inspection endpoint.
func (s *PendingOrderStore) ListForStrategy(strategyID string, limit int) ([]*model.PendingOrder, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, strategy_id, symbol, signal_type, signal_ts, market_type, order_type,
		       amount, price, execution_mode, status, priority, attempts, max_attempts, last_error,
		       payload_json, exchange_id, exchange_order_id, filled, avg_price, dispatch_note, created_at
		FROM pending_orders
		WHERE strategy_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, strategyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.PendingOrder
	for rows.Next() {
		var o model.PendingOrder
		var signalTS, createdAt string
		if err := rows.Scan(&o.ID, &o.UserID, &o.StrategyID, &o.Symbol, &o.SignalType, &signalTS,
			&o.MarketType, &o.OrderType, &o.Amount, &o.Price, &o.ExecutionMode, &o.Status, &o.Priority,
			&o.Attempts, &o.MaxAttempts, &o.LastError, &o.PayloadJSON, &o.ExchangeID, &o.ExchangeOrderID,
			&o.Filled, &o.AvgPrice, &o.DispatchNote, &createdAt); err != nil {
			return nil, err
		}
		o.SignalTS, _ = time.Parse("2006-01-02 15:04:05", signalTS)
		o.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
		out = append(out, &o)
	}
	return out, rows.Err()
}

// Claim attempts the CAS pending->processing transition. ok is false if
// another poller already claimed the row.
func (s *PendingOrderStore) Claim(id int64) (ok bool, err error) {
	res, err := s.db.Exec(`
		UPDATE pending_orders
		SET status = 'processing', attempts = attempts + 1, processed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'
	`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkSent records a terminal success, with whatever filled (possibly a
// partial fill per the maker/market asymmetry rule).
func (s *PendingOrderStore) MarkSent(id int64, filled, avgPrice float64, exchangeOrderID, exchangeResponse, note string) error {
	_, err := s.db.Exec(`
		UPDATE pending_orders
		SET status = 'sent', filled = ?, avg_price = ?, exchange_order_id = ?,
		    exchange_response_json = ?, dispatch_note = ?, sent_at = CURRENT_TIMESTAMP, executed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, filled, avgPrice, exchangeOrderID, exchangeResponse, note, id)
	return err
}

// MarkFailed records a terminal failure (or an error on zero fills).
func (s *PendingOrderStore) MarkFailed(id int64, lastError string) error {
	_, err := s.db.Exec(`
		UPDATE pending_orders SET status = 'failed', last_error = ? WHERE id = ?
	`, lastError, id)
	return err
}

// Retry leaves the row visible to the next poll (attempts already
// incremented by Claim), for transient errors the queue itself retries.
func (s *PendingOrderStore) Retry(id int64, lastError string) error {
	_, err := s.db.Exec(`
		UPDATE pending_orders SET status = 'pending', last_error = ? WHERE id = ?
	`, lastError, id)
	return err
}

// MarkDeferred parks a row in the deferred state: not a failure, but not
// retryable by the normal poll either. The worker's dispatch path does
// not call it; an exchange category mismatch is marked failed instead.
func (s *PendingOrderStore) MarkDeferred(id int64, note string) error {
	_, err := s.db.Exec(`
		UPDATE pending_orders SET status = 'deferred', dispatch_note = ? WHERE id = ?
	`, note, id)
	return err
}

// CountByStatus returns the row count for each status present in the
// table, for the queue-depth gauge.
func (s *PendingOrderStore) CountByStatus() (map[model.PendingOrderStatus]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(1) FROM pending_orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[model.PendingOrderStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[model.PendingOrderStatus(status)] = n
	}
	return out, rows.Err()
}
