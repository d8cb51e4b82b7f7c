package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantdriver/config"
	"quantdriver/exchange"
	"quantdriver/model"
)

func testWorker() *Worker {
	return &Worker{cfg: &config.Config{MakerOffsetBps: 2, MakerWaitSec: 5}}
}

func TestExecuteLiveMakerFillsFully(t *testing.T) {
	w := testWorker()
	client := &fakeClient{
		name: "okx",
		makerFill: &exchange.FillResult{OrderID: "m1", Filled: 1, AvgPrice: 100, Done: true},
	}
	order := &model.PendingOrder{StrategyID: "s1", ID: 1, Symbol: "BTC-USDT-SWAP", SignalType: model.SignalOpenLong,
		Amount: 1, Price: 100, OrderType: "maker", MarketType: model.MarketSwap}

	res := w.executeLive(context.Background(), order, client, 100, 5)
	require.False(t, res.failed)
	assert.Equal(t, 1.0, res.filled)
	assert.Equal(t, 100.0, res.avgPrice)
}

func TestExecuteLiveMakerPartialThenMarketCompletes(t *testing.T) {
	w := testWorker()
	client := &fakeClient{
		name:       "okx",
		makerFill:  &exchange.FillResult{OrderID: "m1", Filled: 0.4, AvgPrice: 100, Done: false},
		marketFill: &exchange.FillResult{OrderID: "mk1", Filled: 0.6, AvgPrice: 101},
	}
	order := &model.PendingOrder{StrategyID: "s1", ID: 2, Symbol: "BTC-USDT-SWAP", SignalType: model.SignalOpenLong,
		Amount: 1, Price: 100, OrderType: "maker", MarketType: model.MarketSwap}

	res := w.executeLive(context.Background(), order, client, 100, 5)
	require.False(t, res.failed)
	assert.InDelta(t, 1.0, res.filled, 1e-9)
}

func TestExecuteLiveMakerPartialThenMarketFailsStillRecordsFill(t *testing.T) {
	w := testWorker()
	client := &fakeClient{
		name:      "okx",
		makerFill: &exchange.FillResult{OrderID: "m1", Filled: 0.4, AvgPrice: 100, Done: false},
		marketErr: assertErr{"market order rejected"},
	}
	order := &model.PendingOrder{StrategyID: "s1", ID: 3, Symbol: "BTC-USDT-SWAP", SignalType: model.SignalOpenLong,
		Amount: 1, Price: 100, OrderType: "maker", MarketType: model.MarketSwap}

	res := w.executeLive(context.Background(), order, client, 100, 5)
	require.False(t, res.failed, "a prior partial fill must never be discarded as a failure")
	assert.InDelta(t, 0.4, res.filled, 1e-9)
}

func TestExecuteLiveZeroFillAndMarketFailIsFailure(t *testing.T) {
	w := testWorker()
	client := &fakeClient{
		name:      "okx",
		makerFill: nil,
		makerErr:  assertErr{"maker rejected"},
		marketErr: assertErr{"market order rejected"},
	}
	order := &model.PendingOrder{StrategyID: "s1", ID: 4, Symbol: "BTC-USDT-SWAP", SignalType: model.SignalOpenLong,
		Amount: 1, Price: 100, OrderType: "maker", MarketType: model.MarketSwap}

	res := w.executeLive(context.Background(), order, client, 100, 5)
	assert.True(t, res.failed, "zero prior fills plus a market failure must be a hard failure")
}

func TestExecuteLiveAccruesFeeAcrossMakerAndMarketPhases(t *testing.T) {
	w := testWorker()
	client := &fakeClient{
		name:       "okx",
		makerFill:  &exchange.FillResult{OrderID: "m1", Filled: 0.4, AvgPrice: 100, Fee: 0.04, FeeCcy: "USDT", Done: false},
		marketFill: &exchange.FillResult{OrderID: "mk1", Filled: 0.6, AvgPrice: 101, Fee: 0.06, FeeCcy: "USDT"},
	}
	order := &model.PendingOrder{StrategyID: "s1", ID: 5, Symbol: "BTC-USDT-SWAP", SignalType: model.SignalOpenLong,
		Amount: 1, Price: 100, OrderType: "maker", MarketType: model.MarketSwap}

	res := w.executeLive(context.Background(), order, client, 100, 5)
	require.False(t, res.failed)
	assert.InDelta(t, 0.1, res.fee, 1e-9, "fee must sum across both phases, not just the last one")
	assert.Equal(t, "USDT", res.feeCcy)
}

func TestSkipTailGuardBelowMinSize(t *testing.T) {
	client := &fakeClient{instrument: exchange.Instrument{CtVal: 0.01, MinSz: 1}}
	// 1 contract * 0.01 ctVal = 0.01 base minimum; remaining below that skips.
	assert.True(t, skipTailGuard(context.Background(), client, "BTC-USDT-SWAP", 0.005))
	assert.False(t, skipTailGuard(context.Background(), client, "BTC-USDT-SWAP", 0.02))
}

func TestUsesMakerPhase(t *testing.T) {
	assert.True(t, usesMakerPhase("maker"))
	assert.True(t, usesMakerPhase("maker_then_market"))
	assert.False(t, usesMakerPhase("market"))
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
