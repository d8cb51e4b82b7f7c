package runner

import (
	"quantdriver/indicator"
	"quantdriver/model"
)

// normalizeRatio accepts position_ratio expressed either as a 0..1 fraction
// or a 0..100 percentage and folds both onto 0..1.
func normalizeRatio(r float64) float64 {
	if r > 1 {
		return r / 100
	}
	return r
}

// openOrAddAmount is the position_ratio-based sizing rule: spot sizes off
// capital alone, futures sizes off capital*leverage since capital is the
// margin budget, not notional.
func openOrAddAmount(marketType model.MarketType, leverage int, capital, ratio, price float64) float64 {
	if price <= 0 {
		return 0
	}
	r := normalizeRatio(ratio)
	if marketType == model.MarketSpot {
		return capital * r / price
	}
	return capital * r * float64(leverage) / price
}

// reduceFraction reads the reduce_* fraction off an indicator bar: an
// explicit reduce_size column wins, falling back to position_size, and
// finally to a 0.1 default when neither is set.
func reduceFraction(bar indicator.Bar) float64 {
	if bar.ReduceSize != nil && *bar.ReduceSize > 0 {
		return *bar.ReduceSize
	}
	if bar.PositionSize != nil && *bar.PositionSize > 0 {
		return *bar.PositionSize
	}
	return 0.1
}

// reduceAmount turns a reduce fraction into a concrete base amount against
// the current position size, promoting to a full close once the remainder
// would fall at or below 0.1% of the starting size.
func reduceAmount(currentSize, fraction float64) (amount float64, promoteToClose bool) {
	amount = currentSize * fraction
	if amount >= 0.999*currentSize {
		return currentSize, true
	}
	return amount, false
}
