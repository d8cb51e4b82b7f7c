package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"quantdriver/model"
)

// StrategyStore persists qd_strategies_trading.
type StrategyStore struct {
	db *sql.DB
}

func (s *StrategyStore) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS qd_strategies_trading (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'stopped',
			strategy_name TEXT NOT NULL,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL DEFAULT '1h',
			initial_capital REAL NOT NULL DEFAULT 0,
			leverage INTEGER NOT NULL DEFAULT 1,
			execution_mode TEXT NOT NULL DEFAULT 'signal',
			trade_direction TEXT NOT NULL DEFAULT 'both',
			market_type TEXT NOT NULL DEFAULT 'swap',
			exchange_id TEXT NOT NULL DEFAULT '',
			indicator_code TEXT NOT NULL DEFAULT '',
			indicator_params TEXT NOT NULL DEFAULT '{}',
			notification_config TEXT NOT NULL DEFAULT '{}',
			exchange_config TEXT NOT NULL DEFAULT '{}',
			trading_config TEXT NOT NULL DEFAULT '{}',
			ai_model_config TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}
	_, _ = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_qd_strategies_status ON qd_strategies_trading(status)`)
	_, _ = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_qd_strategies_user ON qd_strategies_trading(user_id)`)
	_, err = s.db.Exec(`
		CREATE TRIGGER IF NOT EXISTS update_qd_strategies_updated_at
		AFTER UPDATE ON qd_strategies_trading
		BEGIN
			UPDATE qd_strategies_trading SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
		END
	`)
	return err
}

func (s *StrategyStore) Create(st *model.Strategy) error {
	if err := st.Validate(); err != nil {
		return err
	}
	indParams, _ := json.Marshal(st.IndicatorParams)
	notifCfg, _ := json.Marshal(st.NotificationCfg)
	exchCfg, _ := json.Marshal(st.ExchangeConfig)
	tradingCfg, _ := json.Marshal(st.Trading)
	aiCfg, _ := json.Marshal(st.AIModel)

	_, err := s.db.Exec(`
		INSERT INTO qd_strategies_trading
			(id, user_id, status, strategy_name, symbol, timeframe, initial_capital, leverage,
			 execution_mode, trade_direction, market_type, exchange_id, indicator_code,
			 indicator_params, notification_config, exchange_config, trading_config, ai_model_config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, st.ID, st.UserID, st.Status, st.Name, st.Symbol, st.Timeframe, st.InitialCapital, st.Leverage,
		st.ExecutionMode, st.TradeDirection, st.MarketType, st.ExchangeID, st.IndicatorCode,
		string(indParams), string(notifCfg), string(exchCfg), string(tradingCfg), string(aiCfg))
	return err
}

func (s *StrategyStore) SetStatus(id string, status model.StrategyStatus) error {
	_, err := s.db.Exec(`UPDATE qd_strategies_trading SET status = ? WHERE id = ?`, status, id)
	return err
}

// Update rewrites a strategy's tunable config columns in place. Callers are
// expected to stop the strategy's Runner first if execution-affecting
// fields (symbol, timeframe, market type) change underneath it.
func (s *StrategyStore) Update(st *model.Strategy) error {
	if err := st.Validate(); err != nil {
		return err
	}
	indParams, _ := json.Marshal(st.IndicatorParams)
	notifCfg, _ := json.Marshal(st.NotificationCfg)
	exchCfg, _ := json.Marshal(st.ExchangeConfig)
	tradingCfg, _ := json.Marshal(st.Trading)
	aiCfg, _ := json.Marshal(st.AIModel)

	_, err := s.db.Exec(`
		UPDATE qd_strategies_trading SET
			strategy_name = ?, symbol = ?, timeframe = ?, initial_capital = ?, leverage = ?,
			execution_mode = ?, trade_direction = ?, market_type = ?, exchange_id = ?, indicator_code = ?,
			indicator_params = ?, notification_config = ?, exchange_config = ?, trading_config = ?, ai_model_config = ?
		WHERE id = ? AND user_id = ?
	`, st.Name, st.Symbol, st.Timeframe, st.InitialCapital, st.Leverage,
		st.ExecutionMode, st.TradeDirection, st.MarketType, st.ExchangeID, st.IndicatorCode,
		string(indParams), string(notifCfg), string(exchCfg), string(tradingCfg), string(aiCfg),
		st.ID, st.UserID)
	return err
}

func (s *StrategyStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM qd_strategies_trading WHERE id = ?`, id)
	return err
}

func (s *StrategyStore) Get(id string) (*model.Strategy, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, status, strategy_name, symbol, timeframe, initial_capital, leverage,
		       execution_mode, trade_direction, market_type, exchange_id, indicator_code,
		       indicator_params, notification_config, exchange_config, trading_config, ai_model_config,
		       created_at, updated_at
		FROM qd_strategies_trading WHERE id = ?
	`, id)
	return scanStrategy(row)
}

// ListRunning returns every strategy whose persisted status is 'running',
// the set the Supervisor reconciles its live Runner set against on boot.
func (s *StrategyStore) ListRunning() ([]*model.Strategy, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, status, strategy_name, symbol, timeframe, initial_capital, leverage,
		       execution_mode, trade_direction, market_type, exchange_id, indicator_code,
		       indicator_params, notification_config, exchange_config, trading_config, ai_model_config,
		       created_at, updated_at
		FROM qd_strategies_trading WHERE status = 'running'
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Strategy
	for rows.Next() {
		st, err := scanStrategyRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *StrategyStore) List(userID string) ([]*model.Strategy, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, status, strategy_name, symbol, timeframe, initial_capital, leverage,
		       execution_mode, trade_direction, market_type, exchange_id, indicator_code,
		       indicator_params, notification_config, exchange_config, trading_config, ai_model_config,
		       created_at, updated_at
		FROM qd_strategies_trading WHERE user_id = ? ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Strategy
	for rows.Next() {
		st, err := scanStrategyRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanStrategy(row *sql.Row) (*model.Strategy, error) {
	return scanStrategyInto(row)
}

func scanStrategyRows(rows *sql.Rows) (*model.Strategy, error) {
	return scanStrategyInto(rows)
}

func scanStrategyInto(sc scannable) (*model.Strategy, error) {
	var st model.Strategy
	var indParams, notifCfg, exchCfg, tradingCfg, aiCfg string
	var createdAt, updatedAt string
	err := sc.Scan(&st.ID, &st.UserID, &st.Status, &st.Name, &st.Symbol, &st.Timeframe,
		&st.InitialCapital, &st.Leverage, &st.ExecutionMode, &st.TradeDirection, &st.MarketType,
		&st.ExchangeID, &st.IndicatorCode, &indParams, &notifCfg, &exchCfg, &tradingCfg, &aiCfg,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(indParams), &st.IndicatorParams)
	_ = json.Unmarshal([]byte(notifCfg), &st.NotificationCfg)
	_ = json.Unmarshal([]byte(exchCfg), &st.ExchangeConfig)
	_ = json.Unmarshal([]byte(tradingCfg), &st.Trading)
	_ = json.Unmarshal([]byte(aiCfg), &st.AIModel)
	st.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
	st.UpdatedAt, _ = time.Parse("2006-01-02 15:04:05", updatedAt)
	return &st, nil
}
