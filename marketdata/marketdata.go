// Package marketdata defines the candle/price external boundaries and a
// shared, mutex-protected TTL price cache used by every Runner.
package marketdata

import (
	"sync"
	"time"

	"quantdriver/indicator"
	"quantdriver/model"
)

// KlineSource fetches historical candles for a market/symbol/timeframe.
type KlineSource interface {
	Fetch(marketType model.MarketType, symbol, timeframe string, limit int, beforeTS time.Time) ([]indicator.Bar, error)
}

// PriceSource returns the latest traded price for a symbol.
type PriceSource interface {
	Ticker(symbol string) (last float64, err error)
}

type cacheEntry struct {
	price     float64
	fetchedAt time.Time
}

// PriceCache is the shared, cross-Runner price cache called out in the
// concurrency model: one mutex-protected map, short critical sections only.
type PriceCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	source  PriceSource
}

func NewPriceCache(source PriceSource, ttl time.Duration) *PriceCache {
	return &PriceCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		source:  source,
	}
}

// Get returns the cached price if fresh, otherwise fetches, caches, and
// returns a fresh one.
func (c *PriceCache) Get(symbol string) (float64, error) {
	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()
	if ok && time.Since(e.fetchedAt) < c.ttl {
		return e.price, nil
	}

	price, err := c.source.Ticker(symbol)
	if err != nil {
		// Serve stale data over a hard failure if we have any.
		if ok {
			return e.price, nil
		}
		return 0, err
	}

	c.mu.Lock()
	c.entries[symbol] = cacheEntry{price: price, fetchedAt: time.Now()}
	c.mu.Unlock()
	return price, nil
}
