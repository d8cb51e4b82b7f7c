// Package model holds the engine's domain types: strategies, positions,
// trades, pending orders, and notifications. These mirror the qd_* tables
// in store one-to-one.
package model

import "time"

type ExecutionMode string

const (
	ExecutionSignal ExecutionMode = "signal"
	ExecutionLive   ExecutionMode = "live"
)

type TradeDirection string

const (
	DirectionLong  TradeDirection = "long"
	DirectionShort TradeDirection = "short"
	DirectionBoth  TradeDirection = "both"
)

type MarketType string

const (
	MarketSpot MarketType = "spot"
	MarketSwap MarketType = "swap"
)

type StrategyStatus string

const (
	StatusRunning StrategyStatus = "running"
	StatusStopped StrategyStatus = "stopped"
)

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// PendingOrderStatus is the lifecycle of a durable dispatch unit. It moves
// pending -> processing -> {sent, failed, deferred}; a processing row can
// also go back to pending (stale requeue, or a retry after a transient error).
type PendingOrderStatus string

const (
	PendingStatusPending    PendingOrderStatus = "pending"
	PendingStatusProcessing PendingOrderStatus = "processing"
	PendingStatusSent       PendingOrderStatus = "sent"
	PendingStatusFailed     PendingOrderStatus = "failed"
	PendingStatusDeferred   PendingOrderStatus = "deferred"
)

// SignalType enumerates every signal kind the state machine recognizes.
type SignalType string

const (
	SignalOpenLong    SignalType = "open_long"
	SignalCloseLong   SignalType = "close_long"
	SignalAddLong     SignalType = "add_long"
	SignalReduceLong  SignalType = "reduce_long"
	SignalOpenShort   SignalType = "open_short"
	SignalCloseShort  SignalType = "close_short"
	SignalAddShort    SignalType = "add_short"
	SignalReduceShort SignalType = "reduce_short"
)

// TradingConfig is the flat, free-form strategy tuning surface. It is
// persisted as JSON in qd_strategies_trading.trading_config.
type TradingConfig struct {
	SignalMode        string  `json:"signal_mode,omitempty"`         // "", "aggressive"
	ExitSignalMode    string  `json:"exit_signal_mode,omitempty"`    // "", "aggressive"
	EntryTriggerMode  string  `json:"entry_trigger_mode,omitempty"`  // "price" (default), "immediate"
	ExitTriggerMode   string  `json:"exit_trigger_mode,omitempty"`   // "immediate" (default), "price"
	PositionRatio     float64 `json:"position_ratio,omitempty"`      // [0,1] or [0,100]
	StopLossPct       float64 `json:"stop_loss_pct,omitempty"`       // margin PnL pct; <=0 disables
	TakeProfitPct     float64 `json:"take_profit_pct,omitempty"`     // margin PnL pct
	TrailingEnabled   bool    `json:"trailing_enabled,omitempty"`
	TrailingStopPct   float64 `json:"trailing_stop_pct,omitempty"`
	ActivationPct     float64 `json:"activation_pct,omitempty"` // trailing arm threshold; falls back to TakeProfitPct
	OrderMode         string  `json:"order_mode,omitempty"`     // maker|limit|limit_first|maker_then_market|market
	MakerWaitSec      int     `json:"maker_wait_sec,omitempty"`
	MakerOffsetBps    float64 `json:"maker_offset_bps,omitempty"`
	MarketCategory    string  `json:"market_category,omitempty"` // Crypto|USStock|HShare|Forex|AShare|Futures
}

// AIModelConfig gates the optional entry filter.
type AIModelConfig struct {
	Enabled  bool   `json:"enabled,omitempty"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Strategy is immutable config plus mutable status.
type Strategy struct {
	ID                string
	UserID            string
	Status            StrategyStatus
	Name              string
	Symbol            string
	Timeframe         string
	Leverage          int
	InitialCapital    float64
	ExecutionMode     ExecutionMode
	TradeDirection    TradeDirection
	MarketType        MarketType
	ExchangeID        string
	NotificationCfg   map[string]interface{}
	IndicatorCode     string
	IndicatorParams   map[string]interface{}
	ExchangeConfig    map[string]interface{}
	Trading           TradingConfig
	AIModel           AIModelConfig
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Validate enforces the spot/leverage invariants from the data model.
// Leverage is clamped to [1, 125] first, then market_type is derived from
// leverage unconditionally — leverage <= 1 forces spot, leverage > 1 forces
// swap — overwriting whatever market_type was asked for (this also
// absorbs any futures/future/perp/perpetual spelling into swap). Only then
// is leverage re-clamped from the derived market_type: spot always forces
// leverage back to 1 and the direction to long.
func (s *Strategy) Validate() error {
	if s.Leverage < 1 {
		s.Leverage = 1
	}
	if s.Leverage > 125 {
		s.Leverage = 125
	}

	if s.Leverage <= 1 {
		s.MarketType = MarketSpot
	} else {
		s.MarketType = MarketSwap
	}

	if s.MarketType == MarketSpot {
		s.Leverage = 1
		s.TradeDirection = DirectionLong
	}
	return nil
}

// Position is at most one row per (strategy_id, symbol, side).
type Position struct {
	ID           int64
	UserID       string
	StrategyID   string
	Symbol       string
	Side         Side
	Size         float64
	EntryPrice   float64
	CurrentPrice float64
	HighestPrice float64
	LowestPrice  float64
	UpdatedAt    time.Time
}

// State returns the position-state-machine label for a nil-able position.
func (p *Position) State() string {
	if p == nil || p.Size <= 0 {
		return "flat"
	}
	return string(p.Side)
}

// Trade is an append-only execution record.
type Trade struct {
	ID             int64
	UserID         string
	StrategyID     string
	Symbol         string
	Type           SignalType
	Price          float64
	Amount         float64
	Value          float64
	Commission     float64
	CommissionCcy  string
	Profit         *float64
	CreatedAt      time.Time
}

// PendingOrder is the durable dispatch unit the Worker claims and executes.
type PendingOrder struct {
	ID                 int64
	UserID             string
	StrategyID         string
	Symbol             string
	SignalType         SignalType
	SignalTS           time.Time
	MarketType         MarketType
	OrderType          string
	Amount             float64
	Price              float64
	ExecutionMode      ExecutionMode
	Status             PendingOrderStatus
	Priority           int
	Attempts           int
	MaxAttempts        int
	LastError          string
	PayloadJSON        string
	ExchangeID         string
	ExchangeOrderID    string
	ExchangeResponse   string
	Filled             float64
	AvgPrice           float64
	DispatchNote       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ProcessedAt        *time.Time
	SentAt             *time.Time
	ExecutedAt         *time.Time
}

// Notification is a best-effort, user-facing record of a rejected or
// completed signal.
type Notification struct {
	ID          int64
	UserID      string
	StrategyID  string
	Symbol      string
	SignalType  SignalType
	Channels    []string
	Title       string
	Message     string
	PayloadJSON string
	CreatedAt   time.Time
}

// SignalPriority orders candidate signals within a tick: close < reduce <
// open < add.
func SignalPriority(t SignalType) int {
	switch t {
	case SignalCloseLong, SignalCloseShort:
		return 0
	case SignalReduceLong, SignalReduceShort:
		return 1
	case SignalOpenLong, SignalOpenShort:
		return 2
	case SignalAddLong, SignalAddShort:
		return 3
	default:
		return 99
	}
}
