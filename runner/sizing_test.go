package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"quantdriver/indicator"
	"quantdriver/model"
)

func TestOpenAddAmountFuturesScenario(t *testing.T) {
	// capital=1000, ratio=0.1, leverage=5, price=100 -> 1000*0.1*5/100 = 5
	amt := openOrAddAmount(model.MarketSwap, 5, 1000, 0.1, 100)
	assert.InDelta(t, 5.0, amt, 1e-9)
}

func TestOpenAddAmountAcceptsPercentRatio(t *testing.T) {
	amtFraction := openOrAddAmount(model.MarketSwap, 5, 1000, 0.1, 100)
	amtPercent := openOrAddAmount(model.MarketSwap, 5, 1000, 10, 100)
	assert.InDelta(t, amtFraction, amtPercent, 1e-9)
}

func TestOpenAddAmountSpotIgnoresLeverage(t *testing.T) {
	amt := openOrAddAmount(model.MarketSpot, 10, 1000, 0.1, 100)
	assert.InDelta(t, 1.0, amt, 1e-9) // 1000*0.1/100 = 1
}

func TestReduceFractionFallbackOrder(t *testing.T) {
	rs := 0.3
	ps := 0.5
	assert.Equal(t, 0.3, reduceFraction(indicator.Bar{ReduceSize: &rs, PositionSize: &ps}))
	assert.Equal(t, 0.5, reduceFraction(indicator.Bar{PositionSize: &ps}))
	assert.Equal(t, 0.1, reduceFraction(indicator.Bar{}))
}

func TestReduceAmountPromotesToCloseNearFullSize(t *testing.T) {
	amt, promote := reduceAmount(10, 0.999)
	assert.True(t, promote)
	assert.Equal(t, 10.0, amt)

	amt, promote = reduceAmount(10, 0.5)
	assert.False(t, promote)
	assert.Equal(t, 5.0, amt)
}
