package store

import (
	"database/sql"
	"strings"

	"quantdriver/model"
)

// NotificationStore persists qd_strategy_notifications: best-effort,
// user-facing records of rejections and dispatch outcomes.
type NotificationStore struct {
	db *sql.DB
}

func (s *NotificationStore) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS qd_strategy_notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL DEFAULT '',
			strategy_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			signal_type TEXT NOT NULL DEFAULT '',
			channels TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			payload_json TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_qd_notifications_strategy ON qd_strategy_notifications(strategy_id)`)
	return err
}

func (s *NotificationStore) Insert(n *model.Notification) error {
	payload := n.PayloadJSON
	if payload == "" {
		payload = "{}"
	}
	_, err := s.db.Exec(`
		INSERT INTO qd_strategy_notifications
			(user_id, strategy_id, symbol, signal_type, channels, title, message, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, n.UserID, n.StrategyID, n.Symbol, n.SignalType, strings.Join(n.Channels, ","), n.Title, n.Message, payload)
	return err
}
