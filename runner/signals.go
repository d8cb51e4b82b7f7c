package runner

import (
	"sort"
	"time"

	"quantdriver/indicator"
	"quantdriver/model"
)

// candidate is one signal surviving extraction, before state-machine and
// trigger filtering are applied.
type candidate struct {
	signalType   model.SignalType
	triggerPrice float64
	timestamp    time.Time
	reduceSize   *float64
	positionSize *float64
	reason       exitReason // set only for server-side exits
}

func isEntrySignal(t model.SignalType) bool {
	return t == model.SignalOpenLong || t == model.SignalOpenShort || t == model.SignalAddLong || t == model.SignalAddShort
}

func isExitSignal(t model.SignalType) bool {
	return t == model.SignalCloseLong || t == model.SignalCloseShort || t == model.SignalReduceLong || t == model.SignalReduceShort
}

// buyLike reports whether the trigger condition for this signal type fires
// on price rising to meet it (>=) as opposed to falling to meet it (<=).
// open_long/add_long enter by buying; close_short/reduce_short exit a short
// by buying it back, so both are "buy-like".
func buyLike(t model.SignalType) bool {
	switch t {
	case model.SignalOpenLong, model.SignalAddLong, model.SignalCloseShort, model.SignalReduceShort:
		return true
	default:
		return false
	}
}

// extractCandidates sweeps the N-2 (closed) bar, and the N-1 (forming) bar
// when the corresponding aggressive mode is set, building a candidate for
// every signal column the evaluator/normalize step set.
func extractCandidates(frame *indicator.Frame, cfg model.TradingConfig) []candidate {
	n := len(frame.Bars)
	if n < 2 {
		return nil
	}
	var out []candidate
	checkEntryForming := cfg.SignalMode == "aggressive"
	checkExitForming := cfg.ExitSignalMode == "aggressive"

	appendFromBar := func(idx int, includeEntry, includeExit bool) {
		b := frame.Bars[idx]
		add := func(set bool, t model.SignalType) {
			if !set {
				return
			}
			if (isEntrySignal(t) && !includeEntry) || (isExitSignal(t) && !includeExit) {
				return
			}
			out = append(out, candidate{
				signalType:   t,
				triggerPrice: b.Close,
				timestamp:    b.OpenTime,
				reduceSize:   b.ReduceSize,
				positionSize: b.PositionSize,
			})
		}
		add(b.OpenLong, model.SignalOpenLong)
		add(b.CloseLong, model.SignalCloseLong)
		add(b.OpenShort, model.SignalOpenShort)
		add(b.CloseShort, model.SignalCloseShort)
		add(b.AddLong, model.SignalAddLong)
		add(b.AddShort, model.SignalAddShort)
		add(b.ReduceLong, model.SignalReduceLong)
		add(b.ReduceShort, model.SignalReduceShort)
	}

	appendFromBar(n-2, true, true)
	if checkEntryForming || checkExitForming {
		appendFromBar(n-1, checkEntryForming, checkExitForming)
	}
	return out
}

// dropExpired removes candidates whose signal timestamp is older than
// 2*timeframe, per the signal-expiration rule.
func dropExpired(cands []candidate, now time.Time, timeframe time.Duration) []candidate {
	maxAge := 2 * timeframe
	out := cands[:0]
	for _, c := range cands {
		if now.Sub(c.timestamp) <= maxAge {
			out = append(out, c)
		}
	}
	return out
}

// passesTriggerFilter applies entry_trigger_mode/exit_trigger_mode. Entry
// defaults to "price" (requires confirmation); exit defaults to
// "immediate" (fires without one). Either can be set to the other's
// default for testability, which inverts the behavior.
func passesTriggerFilter(c candidate, currentPrice float64, cfg model.TradingConfig) bool {
	if isEntrySignal(c.signalType) {
		mode := cfg.EntryTriggerMode
		if mode == "" {
			mode = "price"
		}
		if mode != "price" {
			return true
		}
	} else if isExitSignal(c.signalType) {
		mode := cfg.ExitTriggerMode
		if mode == "" {
			mode = "immediate"
		}
		if mode != "price" {
			return true
		}
	} else {
		return true
	}
	if buyLike(c.signalType) {
		return currentPrice >= c.triggerPrice
	}
	return currentPrice <= c.triggerPrice
}

// allowedFromState is the hard state-machine constraint: which signal
// types the current flat/long/short state accepts.
func allowedFromState(state string) map[model.SignalType]bool {
	switch state {
	case "long":
		return map[model.SignalType]bool{model.SignalAddLong: true, model.SignalReduceLong: true, model.SignalCloseLong: true}
	case "short":
		return map[model.SignalType]bool{model.SignalAddShort: true, model.SignalReduceShort: true, model.SignalCloseShort: true}
	default: // flat
		return map[model.SignalType]bool{model.SignalOpenLong: true, model.SignalOpenShort: true}
	}
}

// selectOne applies the allowed-transitions filter then the priority order
// close < reduce < open < add, earlier timestamp, then lexicographic type,
// breaking a flat/both-sides-open tie via trade_direction.
func selectOne(cands []candidate, state string, direction model.TradeDirection) *candidate {
	allowed := allowedFromState(state)
	var filtered []candidate
	for _, c := range cands {
		if allowed[c.signalType] {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		pi, pj := model.SignalPriority(filtered[i].signalType), model.SignalPriority(filtered[j].signalType)
		if pi != pj {
			return pi < pj
		}
		if !filtered[i].timestamp.Equal(filtered[j].timestamp) {
			return filtered[i].timestamp.Before(filtered[j].timestamp)
		}
		return filtered[i].signalType < filtered[j].signalType
	})
	top := filtered[0]
	if state == "flat" && top.signalType == model.SignalOpenLong {
		for _, c := range filtered {
			if c.signalType == model.SignalOpenShort && c.timestamp.Equal(top.timestamp) && direction == model.DirectionShort {
				return &c
			}
		}
	}
	return &top
}
