package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantdriver/model"
)

func TestServerStopLossLongFires(t *testing.T) {
	pos := &model.Position{Side: model.SideLong, Size: 5, EntryPrice: 100}
	cfg := model.TradingConfig{StopLossPct: 0.02}
	sig, reason, fired := serverExit(pos, 98.9, cfg, 2) // threshold = 100*(1-0.01) = 99.0
	require.True(t, fired)
	assert.Equal(t, model.SignalCloseLong, sig)
	assert.Equal(t, reasonServerStopLoss, reason)
}

func TestServerStopLossDisabledWhenNonPositive(t *testing.T) {
	pos := &model.Position{Side: model.SideLong, Size: 5, EntryPrice: 100}
	cfg := model.TradingConfig{StopLossPct: 0}
	_, _, fired := serverExit(pos, 1, cfg, 2)
	assert.False(t, fired)
}

func TestTrailingDisablesFixedTakeProfit(t *testing.T) {
	pos := &model.Position{Side: model.SideLong, Size: 5, EntryPrice: 100, HighestPrice: 100}
	cfg := model.TradingConfig{TakeProfitPct: 0.04, TrailingEnabled: true, TrailingStopPct: 0.02, ActivationPct: 0.1}
	// Price well above TP threshold but trailing isn't armed yet (activation not reached);
	// fixed TP must stay disabled because trailing is enabled, not just because it's armed.
	_, _, fired := serverExit(pos, 105, cfg, 1) // TP threshold = 100*(1+0.04/1) = 104; arm level = 110
	assert.False(t, fired, "fixed take-profit must be disabled whenever trailing is enabled")
}

func TestTrailingStopFiresOnceArmedAndRetraced(t *testing.T) {
	pos := &model.Position{Side: model.SideLong, Size: 5, EntryPrice: 100, HighestPrice: 120}
	cfg := model.TradingConfig{TrailingEnabled: true, TrailingStopPct: 0.02, ActivationPct: 0.1}
	// Armed: highest(120) >= entry*(1+0.1/1)=110. Retracement floor = 120*(1-0.02/1)=117.6.
	sig, reason, fired := serverExit(pos, 117, cfg, 1)
	require.True(t, fired)
	assert.Equal(t, model.SignalCloseLong, sig)
	assert.Equal(t, reasonServerTrailingStop, reason)
}
