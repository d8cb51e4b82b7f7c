package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantdriver/config"
	"quantdriver/exchange"
	"quantdriver/model"
	"quantdriver/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSettleOpenCreatesPosition(t *testing.T) {
	st := openStore(t)
	order := &model.PendingOrder{UserID: "u1", StrategyID: "s1", Symbol: "BTCUSDT", SignalType: model.SignalOpenLong}
	settle(st, order, 1, 100, 0.1, "USDT")

	pos, err := st.Positions.Get("s1", "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, 1.0, pos.Size)
	assert.Equal(t, 100.0, pos.EntryPrice)
}

func TestSettleCloseComputesFeeAdjustedProfitForStableCcy(t *testing.T) {
	st := openStore(t)
	open := &model.PendingOrder{UserID: "u1", StrategyID: "s1", Symbol: "BTCUSDT", SignalType: model.SignalOpenLong}
	settle(st, open, 1, 100, 0, "")

	closeOrder := &model.PendingOrder{UserID: "u1", StrategyID: "s1", Symbol: "BTCUSDT", SignalType: model.SignalCloseLong}
	settle(st, closeOrder, 1, 110, 1, "USDT")

	trades, err := st.Trades.ListForStrategy("s1", 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	closeTrade := trades[0]
	require.NotNil(t, closeTrade.Profit)
	assert.InDelta(t, 9.0, *closeTrade.Profit, 1e-9, "profit 10 minus 1 fee in a stable currency")

	pos, err := st.Positions.Get("s1", "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, pos, "closed position must be deleted")
}

func TestSettleCloseLeavesProfitUnadjustedForNonStableFeeCcy(t *testing.T) {
	st := openStore(t)
	open := &model.PendingOrder{UserID: "u1", StrategyID: "s1", Symbol: "ETHUSDT", SignalType: model.SignalOpenLong}
	settle(st, open, 1, 100, 0, "")

	closeOrder := &model.PendingOrder{UserID: "u1", StrategyID: "s1", Symbol: "ETHUSDT", SignalType: model.SignalCloseLong}
	settle(st, closeOrder, 1, 110, 1, "BNB")

	trades, err := st.Trades.ListForStrategy("s1", 10)
	require.NoError(t, err)
	closeTrade := trades[0]
	require.NotNil(t, closeTrade.Profit)
	assert.InDelta(t, 10.0, *closeTrade.Profit, 1e-9, "fee in a non-stable currency must not be subtracted")
}

func TestSettleReduceKeepsPositionOpenWithPartialProfit(t *testing.T) {
	st := openStore(t)
	open := &model.PendingOrder{UserID: "u1", StrategyID: "s1", Symbol: "BTCUSDT", SignalType: model.SignalOpenLong}
	settle(st, open, 10, 100, 0, "")

	reduce := &model.PendingOrder{UserID: "u1", StrategyID: "s1", Symbol: "BTCUSDT", SignalType: model.SignalReduceLong}
	settle(st, reduce, 2, 105, 0, "")

	pos, err := st.Positions.Get("s1", "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.InDelta(t, 8.0, pos.Size, 1e-9)

	trades, err := st.Trades.ListForStrategy("s1", 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	require.NotNil(t, trades[0].Profit)
	assert.InDelta(t, 10.0, *trades[0].Profit, 1e-9, "realized (105-100)*2 on the reduced part")
}

// TestDispatchLiveFeeFlowsFromFillThroughSettle drives a fee-bearing fill
// through executeLive and into settle the same way dispatchLive wires them
// together, so the fee seen on the exchange response actually reaches the
// persisted trade's fee-adjusted profit rather than being dropped in between.
func TestDispatchLiveFeeFlowsFromFillThroughSettle(t *testing.T) {
	st := openStore(t)
	w := &Worker{st: st, cfg: &config.Config{MakerOffsetBps: 2, MakerWaitSec: 5}}

	open := &model.PendingOrder{UserID: "u1", StrategyID: "s1", Symbol: "BTCUSDT", SignalType: model.SignalOpenLong}
	settle(st, open, 1, 100, 0, "")

	client := &fakeClient{
		name:      "okx",
		makerFill: &exchange.FillResult{OrderID: "m1", Filled: 1, AvgPrice: 110, Fee: 1, FeeCcy: "USDT", Done: true},
	}
	closeOrder := &model.PendingOrder{UserID: "u1", StrategyID: "s1", ID: 9, Symbol: "BTCUSDT",
		SignalType: model.SignalCloseLong, Amount: 1, Price: 110, OrderType: "maker", MarketType: model.MarketSwap}

	res := w.executeLive(context.Background(), closeOrder, client, 110, 1)
	require.False(t, res.failed)
	settle(st, closeOrder, res.filled, res.avgPrice, res.fee, res.feeCcy)

	trades, err := st.Trades.ListForStrategy("s1", 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	closeTrade := trades[0]
	require.NotNil(t, closeTrade.Profit)
	assert.InDelta(t, 9.0, *closeTrade.Profit, 1e-9, "fee from the fill result must reach settle's profit adjustment")
	assert.Equal(t, 1.0, closeTrade.Commission)
	assert.Equal(t, "USDT", closeTrade.CommissionCcy)
}
