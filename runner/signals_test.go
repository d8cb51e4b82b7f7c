package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantdriver/indicator"
	"quantdriver/model"
)

func TestExtractCandidatesClosedBarOnly(t *testing.T) {
	open := time.Now().Add(-time.Hour)
	frame := &indicator.Frame{Bars: []indicator.Bar{
		{OpenTime: open.Add(-time.Hour), Close: 100},
		{OpenTime: open, Close: 101, OpenLong: true},
		{OpenTime: open.Add(time.Hour), Close: 102, OpenLong: true}, // forming bar
	}}
	cands := extractCandidates(frame, model.TradingConfig{})
	require.Len(t, cands, 1)
	assert.Equal(t, model.SignalOpenLong, cands[0].signalType)
	assert.True(t, cands[0].timestamp.Equal(open))
}

func TestExtractCandidatesAggressiveIncludesForming(t *testing.T) {
	open := time.Now()
	frame := &indicator.Frame{Bars: []indicator.Bar{
		{OpenTime: open.Add(-time.Hour), Close: 100},
		{OpenTime: open, Close: 101},
		{OpenTime: open.Add(time.Hour), Close: 102, OpenLong: true},
	}}
	cands := extractCandidates(frame, model.TradingConfig{SignalMode: "aggressive"})
	require.Len(t, cands, 1)
	assert.Equal(t, model.SignalOpenLong, cands[0].signalType)
}

func TestDropExpiredFiltersOldSignals(t *testing.T) {
	now := time.Now()
	tf := time.Hour
	cands := []candidate{
		{signalType: model.SignalOpenLong, timestamp: now.Add(-3 * time.Hour)}, // expired (> 2h)
		{signalType: model.SignalOpenShort, timestamp: now.Add(-30 * time.Minute)},
	}
	out := dropExpired(cands, now, tf)
	require.Len(t, out, 1)
	assert.Equal(t, model.SignalOpenShort, out[0].signalType)
}

func TestTriggerFilterEntryPriceModeBuyLike(t *testing.T) {
	cfg := model.TradingConfig{} // default entry_trigger_mode=price
	c := candidate{signalType: model.SignalOpenLong, triggerPrice: 100}
	assert.True(t, passesTriggerFilter(c, 100.5, cfg))
	assert.False(t, passesTriggerFilter(c, 99.5, cfg))
}

func TestTriggerFilterExitImmediateByDefault(t *testing.T) {
	cfg := model.TradingConfig{}
	c := candidate{signalType: model.SignalCloseLong, triggerPrice: 100}
	assert.True(t, passesTriggerFilter(c, 50, cfg)) // fires regardless of price
}

func TestStateMachineDiscardsDisallowedTransition(t *testing.T) {
	cands := []candidate{{signalType: model.SignalOpenLong, timestamp: time.Now()}}
	chosen := selectOne(cands, "long", model.DirectionBoth)
	assert.Nil(t, chosen, "long state must not accept open_long")
}

func TestPrioritySelectsCloseOverReduce(t *testing.T) {
	ts := time.Now()
	cands := []candidate{
		{signalType: model.SignalReduceLong, timestamp: ts},
		{signalType: model.SignalCloseLong, timestamp: ts},
	}
	chosen := selectOne(cands, "long", model.DirectionBoth)
	require.NotNil(t, chosen)
	assert.Equal(t, model.SignalCloseLong, chosen.signalType)
}
