// Package config loads process configuration from the environment, with
// defaults matching the engine's documented defaults. A .env file in the
// working directory is loaded first if present.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"quantdriver/logger"
)

func init() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warnf("could not load .env: %v", err)
	}
}

// Config holds every environment-tunable knob the Runner, Worker, and API
// read at startup. Strategy-specific settings live in the strategy's own
// trading_config column, not here.
type Config struct {
	DBPath string

	StrategyTickIntervalSec int
	StrategyMaxThreads      int
	PriceCacheTTLSec        int

	OrderMode      string
	MakerWaitSec   int
	MakerOffsetBps float64

	PendingOrderStaleSec    int
	PendingOrderBatchSize   int
	PositionSyncEnabled     bool
	PositionSyncIntervalSec int
	KlineHistoryGetNumber   int

	WorkerConsoleEcho bool

	IndicatorEvaluatorURL string
	IndicatorEvaluatorKey string
	EntryFilterURL        string
	EntryFilterKey        string
	PriceStreamURL        string
	BinanceAPIKey         string
	BinanceSecretKey      string

	APIAddr           string
	JWTSecret         string
	JWTTTLSec         int
	TOTPEnabled       bool
	OperatorUser      string
	OperatorPassHash  string
	OperatorTOTPKey   string

	MetricsAddr string
}

// Load reads the environment into a Config, applying spec-documented
// defaults for anything unset.
func Load() *Config {
	c := &Config{
		DBPath: getStr("QD_DB_PATH", "quantdriver.db"),

		StrategyTickIntervalSec: getInt("STRATEGY_TICK_INTERVAL_SEC", 10),
		StrategyMaxThreads:      getInt("STRATEGY_MAX_THREADS", 64),
		PriceCacheTTLSec:        getInt("PRICE_CACHE_TTL_SEC", 10),

		OrderMode:      getStr("ORDER_MODE", "maker"),
		MakerWaitSec:   getInt("MAKER_WAIT_SEC", 10),
		MakerOffsetBps: getFloat("MAKER_OFFSET_BPS", 2),

		PendingOrderStaleSec:    getInt("PENDING_ORDER_STALE_SEC", 90),
		PendingOrderBatchSize:   getInt("PENDING_ORDER_BATCH_SIZE", 20),
		PositionSyncEnabled:     getBool("POSITION_SYNC_ENABLED", true),
		PositionSyncIntervalSec: getInt("POSITION_SYNC_INTERVAL_SEC", 10),
		KlineHistoryGetNumber:   getInt("K_LINE_HISTORY_GET_NUMBER", 500),

		WorkerConsoleEcho: getBool("WORKER_CONSOLE_ECHO", false),

		IndicatorEvaluatorURL: getStr("INDICATOR_EVALUATOR_URL", ""),
		IndicatorEvaluatorKey: getStr("INDICATOR_EVALUATOR_KEY", ""),
		EntryFilterURL:        getStr("ENTRY_FILTER_URL", ""),
		EntryFilterKey:        getStr("ENTRY_FILTER_KEY", ""),
		PriceStreamURL:        getStr("PRICE_STREAM_URL", "wss://stream.binance.com:9443/ws"),
		BinanceAPIKey:         getStr("BINANCE_API_KEY", ""),
		BinanceSecretKey:      getStr("BINANCE_SECRET_KEY", ""),

		APIAddr:          getStr("API_ADDR", ":8080"),
		JWTSecret:        getStr("JWT_SECRET", ""),
		JWTTTLSec:        getInt("JWT_TTL_SEC", 3600),
		TOTPEnabled:      getBool("TOTP_ENABLED", false),
		OperatorUser:     getStr("OPERATOR_USER", "admin"),
		OperatorPassHash: getStr("OPERATOR_PASS_HASH", ""),
		OperatorTOTPKey:  getStr("OPERATOR_TOTP_KEY", ""),

		MetricsAddr: getStr("METRICS_ADDR", ":9090"),
	}
	return c
}

func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLSec) * time.Second
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.StrategyTickIntervalSec) * time.Second
}

func (c *Config) PriceCacheTTL() time.Duration {
	return time.Duration(c.PriceCacheTTLSec) * time.Second
}

func (c *Config) MakerWait() time.Duration {
	return time.Duration(c.MakerWaitSec) * time.Second
}

func (c *Config) PendingOrderStale() time.Duration {
	return time.Duration(c.PendingOrderStaleSec) * time.Second
}

func (c *Config) PositionSyncInterval() time.Duration {
	return time.Duration(c.PositionSyncIntervalSec) * time.Second
}

func getStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
