package worker

import (
	"context"
	"fmt"
	"time"

	"quantdriver/exchange"
	"quantdriver/model"
)

// execResult is the outcome of a live-mode dispatch: either a terminal
// success (possibly partial, never an error) or a hard failure.
type execResult struct {
	filled       float64
	avgPrice     float64
	fee          float64
	feeCcy       string
	exchangeID   string
	responseJSON string
	note         string
	failed       bool
	failErr      string
}

// makerMarketModes are the order_type values that attempt a maker phase
// before falling back to market. "market" skips straight to phase two.
func usesMakerPhase(orderType string) bool {
	switch orderType {
	case "maker", "limit", "limit_first", "maker_then_market":
		return true
	default:
		return false
	}
}

// executeLive runs the two-phase maker-then-market protocol for one
// pending order against the strategy's exchange client, honoring every
// venue nuance called out in the design: contract-size translation (inside
// the adapters themselves), leverage setting, spot quote-size conversion
// (also inside the adapters), the OKX tail guard, and the
// partial-success-vs-failure asymmetry.
func (w *Worker) executeLive(ctx context.Context, order *model.PendingOrder, client exchange.ExchangeClient, refPrice float64, leverage int) execResult {
	side := orderSideFor(order.SignalType)
	reduceOnly := isExitSignalType(order.SignalType)

	if order.MarketType != model.MarketSpot {
		posSide := posSideFor(order.SignalType)
		if err := client.SetLeverage(ctx, order.Symbol, leverage, posSide); err != nil {
			if client.Name() == "binance" {
				return execResult{failed: true, failErr: fmt.Sprintf("binance_set_leverage_failed: %v", err)}
			}
			// OKX/Bitget/others: best-effort per design notes, proceed anyway.
		}
	}

	var filled, sumValue, sumFee float64
	var feeCcy string
	var lastOrderID string

	accrueFee := func(fill *exchange.FillResult) {
		sumFee += fill.Fee
		if fill.FeeCcy != "" {
			feeCcy = fill.FeeCcy
		}
	}

	if usesMakerPhase(order.OrderType) {
		offset := w.cfg.MakerOffsetBps / 10_000
		makerPrice := refPrice
		if side == exchange.OrderBuy {
			makerPrice = refPrice * (1 - offset)
		} else {
			makerPrice = refPrice * (1 + offset)
		}
		req := exchange.OrderRequest{
			Symbol:        order.Symbol,
			Side:          side,
			Amount:        order.Amount,
			Price:         makerPrice,
			PostOnly:      true,
			ReduceOnly:    reduceOnly,
			ClientOrderID: clientOrderID(order.StrategyID, order.ID, "maker"),
			MarketType:    order.MarketType,
			PosSide:       posSideFor(order.SignalType),
		}
		res, err := client.PlaceLimitOrder(ctx, req)
		if err == nil && res != nil {
			lastOrderID = res.OrderID
			fill, ferr := client.WaitForFill(ctx, order.Symbol, res.OrderID, w.cfg.MakerWait())
			if ferr == nil && fill != nil {
				filled += fill.Filled
				sumValue += fill.Filled * fill.AvgPrice
				accrueFee(fill)
				if !fill.Done || fill.Filled < order.Amount {
					_ = client.CancelOrder(ctx, order.Symbol, res.OrderID)
				}
			}
		}
	}

	remaining := order.Amount - filled
	if remaining > 1e-9 {
		if skipTailGuard(ctx, client, order.Symbol, remaining) {
			// Remaining below the venue's minimum tradable size: don't
			// chase with a market order, treat what filled as success.
		} else {
			req := exchange.OrderRequest{
				Symbol:        order.Symbol,
				Side:          side,
				Amount:        remaining,
				ReduceOnly:    reduceOnly,
				ClientOrderID: clientOrderID(order.StrategyID, order.ID, "market"),
				MarketType:    order.MarketType,
				PosSide:       posSideFor(order.SignalType),
			}
			res, err := client.PlaceMarketOrder(ctx, req)
			if err != nil {
				if filled <= 0 {
					return execResult{failed: true, failErr: err.Error()}
				}
				// Partial-success rule: maker filled > 0 but market phase
				// failed. Never mark failed; record what filled.
			} else if res != nil {
				lastOrderID = res.OrderID
				fill, ferr := client.WaitForFill(ctx, order.Symbol, res.OrderID, 10*time.Second)
				if ferr == nil && fill != nil {
					filled += fill.Filled
					sumValue += fill.Filled * fill.AvgPrice
					accrueFee(fill)
				} else {
					filled += remaining // market orders fill immediately in the common case
					sumValue += remaining * refPrice
				}
			}
		}
	}

	if filled <= 0 {
		return execResult{failed: true, failErr: "no fill on maker or market phase"}
	}
	avg := sumValue / filled
	return execResult{
		filled:     filled,
		avgPrice:   avg,
		fee:        sumFee,
		feeCcy:     feeCcy,
		exchangeID: lastOrderID,
		note:       fmt.Sprintf("executed via %s", client.Name()),
	}
}

// skipTailGuard implements the OKX-swap rule generalized to any venue that
// reports contract-size metadata: if what's left after the maker phase is
// below minSz*ctVal (with a best-effort epsilon), stop chasing it.
func skipTailGuard(ctx context.Context, client exchange.ExchangeClient, symbol string, remaining float64) bool {
	inst, err := client.GetInstrument(ctx, symbol)
	if err != nil || inst.MinSz <= 0 {
		return false
	}
	minBase := inst.ContractsToBase(inst.MinSz)
	const epsilon = 1e-6
	return remaining < minBase-epsilon
}

func orderSideFor(t model.SignalType) exchange.OrderSide {
	switch t {
	case model.SignalOpenLong, model.SignalAddLong, model.SignalCloseShort, model.SignalReduceShort:
		return exchange.OrderBuy
	default:
		return exchange.OrderSell
	}
}

func posSideFor(t model.SignalType) model.Side {
	switch t {
	case model.SignalOpenLong, model.SignalAddLong, model.SignalCloseLong, model.SignalReduceLong:
		return model.SideLong
	default:
		return model.SideShort
	}
}

func isExitSignalType(t model.SignalType) bool {
	switch t {
	case model.SignalCloseLong, model.SignalCloseShort, model.SignalReduceLong, model.SignalReduceShort:
		return true
	default:
		return false
	}
}
