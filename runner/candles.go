package runner

import (
	"time"

	"quantdriver/indicator"
)

// refreshCandles implements the candle refresh policy: every tick, slide
// the last candle's OHLC to track the current price without touching
// volume; once a full timeframe period has elapsed since the last fetch,
// refetch the whole window from the KlineSource.
func (r *Runner) refreshCandles(price float64) error {
	now := time.Now()
	if r.frame == nil || now.Sub(r.lastFull) >= r.timeframe {
		limit := r.cfg.KlineHistoryGetNumber
		if limit <= 0 {
			limit = 500
		}
		bars, err := r.klines.Fetch(r.strategy.MarketType, r.strategy.Symbol, r.strategy.Timeframe, limit, time.Time{})
		if err != nil {
			if r.frame != nil {
				r.slideLastCandle(price) // degrade to sliding update over a hard failure
				return nil
			}
			return err
		}
		r.frame = &indicator.Frame{Bars: bars}
		r.lastFull = now
		return nil
	}
	r.slideLastCandle(price)
	return nil
}

func (r *Runner) slideLastCandle(price float64) {
	if r.frame == nil || len(r.frame.Bars) == 0 {
		return
	}
	last := &r.frame.Bars[len(r.frame.Bars)-1]
	if price > last.High {
		last.High = price
	}
	if price < last.Low || last.Low == 0 {
		last.Low = price
	}
	last.Close = price
}
