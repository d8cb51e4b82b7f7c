package worker

import (
	"quantdriver/logger"
	"quantdriver/model"
	"quantdriver/store"
)

// stableFeeCcy marks the currencies settlement deducts fees in before
// computing profit; anything else is recorded but left out of the P&L math.
var stableFeeCcy = map[string]bool{"USDT": true, "USDC": true, "USD": true}

// settle applies a fill to the local position via the canonical state
// transitions (flat+open->long/short, add->wavg, reduce->decrement or
// close, close->delete) and appends a Trade row. Fee is always stored;
// profit is only fee-adjusted when fee_ccy is one of the stable
// currencies settlement trusts for direct subtraction.
func settle(st *store.Store, order *model.PendingOrder, filled, avgPrice, fee float64, feeCcy string) {
	side := posSideFor(order.SignalType)

	var profit *float64
	switch order.SignalType {
	case model.SignalOpenLong, model.SignalOpenShort:
		if err := st.Positions.Open(order.UserID, order.StrategyID, order.Symbol, side, filled, avgPrice); err != nil {
			logger.ErrorErr("settlement open failed", err)
			return
		}
	case model.SignalAddLong, model.SignalAddShort:
		if err := st.Positions.Add(order.StrategyID, order.Symbol, side, filled, avgPrice); err != nil {
			logger.ErrorErr("settlement add failed", err)
			return
		}
	case model.SignalReduceLong, model.SignalReduceShort:
		p, _ := st.Positions.Get(order.StrategyID, order.Symbol)
		if p != nil {
			realized := (avgPrice - p.EntryPrice) * filled
			if side == model.SideShort {
				realized = (p.EntryPrice - avgPrice) * filled
			}
			profit = &realized
		}
		if err := st.Positions.Reduce(order.StrategyID, order.Symbol, side, filled, avgPrice); err != nil {
			logger.ErrorErr("settlement reduce failed", err)
			return
		}
	case model.SignalCloseLong, model.SignalCloseShort:
		p, _ := st.Positions.Get(order.StrategyID, order.Symbol)
		if p != nil {
			realized := (avgPrice - p.EntryPrice) * filled
			if side == model.SideShort {
				realized = (p.EntryPrice - avgPrice) * filled
			}
			profit = &realized
		}
		if err := st.Positions.Close(order.StrategyID, order.Symbol, side); err != nil {
			logger.ErrorErr("settlement close failed", err)
			return
		}
	}

	if profit != nil && stableFeeCcy[feeCcy] {
		adjusted := *profit - fee
		profit = &adjusted
	}

	trade := &model.Trade{
		UserID:        order.UserID,
		StrategyID:    order.StrategyID,
		Symbol:        order.Symbol,
		Type:          order.SignalType,
		Price:         avgPrice,
		Amount:        filled,
		Value:         avgPrice * filled,
		Commission:    fee,
		CommissionCcy: feeCcy,
		Profit:        profit,
	}
	if err := st.Trades.Insert(trade); err != nil {
		logger.ErrorErr("trade insert failed", err)
	}
}
