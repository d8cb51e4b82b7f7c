package runner

import (
	"sync"
	"time"

	"quantdriver/model"
)

// dedupKey mirrors the in-memory SignalDedupKey from the data model:
// (strategy_id, normalized_symbol, signal_type, signal_ts). strategy_id is
// implicit since a dedup map is per-Runner.
type dedupKey struct {
	symbol     string
	signalType model.SignalType
	signalTS   time.Time
}

// dedupMap is the per-Runner, TTL-expiring guard against re-enqueueing the
// same signal across ticks within the candle it was produced on. It is
// never shared across strategies, unlike the price cache.
type dedupMap struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[dedupKey]time.Time
}

func newDedupMap(ttl time.Duration) *dedupMap {
	return &dedupMap{ttl: ttl, entries: make(map[dedupKey]time.Time)}
}

// seenOrMark returns true if the key was already recorded within TTL
// (reject as a repeat); otherwise it records the key and returns false.
func (d *dedupMap) seenOrMark(symbol string, signalType model.SignalType, signalTS time.Time) bool {
	k := dedupKey{symbol: symbol, signalType: signalType, signalTS: signalTS}
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sweep(now)
	if expiresAt, ok := d.entries[k]; ok && now.Before(expiresAt) {
		return true
	}
	d.entries[k] = now.Add(d.ttl)
	return false
}

func (d *dedupMap) sweep(now time.Time) {
	for k, exp := range d.entries {
		if now.After(exp) {
			delete(d.entries, k)
		}
	}
}
