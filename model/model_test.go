package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateLeverageOneForcesSpot(t *testing.T) {
	s := &Strategy{Leverage: 1, MarketType: MarketSwap, TradeDirection: DirectionShort}
	assert.NoError(t, s.Validate())
	assert.Equal(t, MarketSpot, s.MarketType)
	assert.Equal(t, DirectionLong, s.TradeDirection)
}

func TestValidateNormalizesFuturesAliasesToSwap(t *testing.T) {
	for _, alias := range []MarketType{"futures", "future", "perp", "perpetual", MarketSwap} {
		s := &Strategy{Leverage: 5, MarketType: alias}
		assert.NoError(t, s.Validate())
		assert.Equal(t, MarketSwap, s.MarketType)
	}
}

// A leveraged strategy re-submitted with a stale "spot" market_type (e.g. a
// client bug, or an old spot strategy bumped to leverage later) must derive
// swap from the leverage, not keep the requested spot value.
func TestValidateLeveragedRequestOverridesStaleSpotMarketType(t *testing.T) {
	s := &Strategy{Leverage: 5, MarketType: MarketSpot}
	assert.NoError(t, s.Validate())
	assert.Equal(t, MarketSwap, s.MarketType)
	assert.Equal(t, 5, s.Leverage)
}

func TestValidateClampsLeverageRange(t *testing.T) {
	s := &Strategy{Leverage: 0, MarketType: MarketSwap}
	assert.NoError(t, s.Validate())
	assert.Equal(t, 1, s.Leverage)

	s = &Strategy{Leverage: 500, MarketType: MarketSwap}
	assert.NoError(t, s.Validate())
	assert.Equal(t, 125, s.Leverage)
}
