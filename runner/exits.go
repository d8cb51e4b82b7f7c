package runner

import (
	"quantdriver/model"
)

// exitReason tags why a server-side exit fired, carried through to the
// notification/trade record rather than invented ad hoc at call sites.
type exitReason string

const (
	reasonServerStopLoss     exitReason = "server_stop_loss"
	reasonServerTakeProfit   exitReason = "server_take_profit"
	reasonServerTrailingStop exitReason = "server_trailing_stop"
)

// serverExit evaluates stop-loss, fixed take-profit, and trailing-stop
// against the latest position and price, independent of the indicator.
// Percentages are margin-PnL based and converted to price-move thresholds
// by dividing by leverage. Fixed TP is skipped whenever trailing is
// enabled with a positive trailing pct, whether or not it is armed yet.
func serverExit(pos *model.Position, price float64, cfg model.TradingConfig, leverage int) (model.SignalType, exitReason, bool) {
	if pos == nil || pos.Size <= 0 || leverage <= 0 {
		return "", "", false
	}
	lev := float64(leverage)

	if cfg.StopLossPct > 0 {
		if pos.Side == model.SideLong {
			threshold := pos.EntryPrice * (1 - cfg.StopLossPct/lev)
			if price <= threshold {
				return model.SignalCloseLong, reasonServerStopLoss, true
			}
		} else {
			threshold := pos.EntryPrice * (1 + cfg.StopLossPct/lev)
			if price >= threshold {
				return model.SignalCloseShort, reasonServerStopLoss, true
			}
		}
	}

	trailingArmed := false
	if cfg.TrailingEnabled && cfg.TrailingStopPct > 0 {
		activation := cfg.ActivationPct
		if activation <= 0 {
			activation = cfg.TakeProfitPct
		}
		if activation > 0 {
			if pos.Side == model.SideLong {
				armThreshold := pos.EntryPrice * (1 + activation/lev)
				trailingArmed = pos.HighestPrice >= armThreshold
			} else {
				armThreshold := pos.EntryPrice * (1 - activation/lev)
				trailingArmed = pos.LowestPrice > 0 && pos.LowestPrice <= armThreshold
			}
		}
		if trailingArmed {
			if pos.Side == model.SideLong {
				retracementFloor := pos.HighestPrice * (1 - cfg.TrailingStopPct/lev)
				if price <= retracementFloor {
					return model.SignalCloseLong, reasonServerTrailingStop, true
				}
			} else {
				retracementCeil := pos.LowestPrice * (1 + cfg.TrailingStopPct/lev)
				if price >= retracementCeil {
					return model.SignalCloseShort, reasonServerTrailingStop, true
				}
			}
		}
	}

	// Fixed TP is mutually exclusive with trailing: only consider it when
	// trailing isn't enabled at all (not merely unarmed yet), per spec.
	if cfg.TakeProfitPct > 0 && !(cfg.TrailingEnabled && cfg.TrailingStopPct > 0) {
		if pos.Side == model.SideLong {
			threshold := pos.EntryPrice * (1 + cfg.TakeProfitPct/lev)
			if price >= threshold {
				return model.SignalCloseLong, reasonServerTakeProfit, true
			}
		} else {
			threshold := pos.EntryPrice * (1 - cfg.TakeProfitPct/lev)
			if price <= threshold {
				return model.SignalCloseShort, reasonServerTakeProfit, true
			}
		}
	}

	return "", "", false
}
