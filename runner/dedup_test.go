package runner

import (
	"testing"
	"time"

	"github.com/agiledragon/gomonkey/v2"
	"github.com/stretchr/testify/assert"

	"quantdriver/model"
)

func TestDedupMapRejectsRepeatWithinTTL(t *testing.T) {
	d := newDedupMap(time.Hour)
	ts := time.Now()
	assert.False(t, d.seenOrMark("BTCUSDT", model.SignalOpenLong, ts), "first sighting must not be rejected")
	assert.True(t, d.seenOrMark("BTCUSDT", model.SignalOpenLong, ts), "identical key within TTL must be rejected")
}

func TestDedupMapAllowsAfterExpiry(t *testing.T) {
	d := newDedupMap(time.Minute)
	ts := time.Now()
	clock := ts
	patches := gomonkey.ApplyFunc(time.Now, func() time.Time { return clock })
	defer patches.Reset()

	assert.False(t, d.seenOrMark("BTCUSDT", model.SignalOpenLong, ts))
	clock = clock.Add(2 * time.Minute)
	assert.False(t, d.seenOrMark("BTCUSDT", model.SignalOpenLong, ts), "entry past TTL must be treated as new")
}

func TestDedupMapDistinguishesSymbol(t *testing.T) {
	d := newDedupMap(time.Hour)
	ts := time.Now()
	assert.False(t, d.seenOrMark("BTCUSDT", model.SignalOpenLong, ts))
	assert.False(t, d.seenOrMark("ETHUSDT", model.SignalOpenLong, ts), "different symbol is a different key")
}
