package worker

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantdriver/config"
	"quantdriver/model"
	"quantdriver/notifier"
	"quantdriver/store"
)

type fakeNotifier struct {
	results map[string]notifier.ChannelResult
	err     error
	calls   int
}

func (n *fakeNotifier) Notify(strategyID, name, symbol string, signalType model.SignalType, price, amount float64,
	direction model.TradeDirection, cfg map[string]interface{}, extra map[string]interface{}) (map[string]notifier.ChannelResult, error) {
	n.calls++
	if n.err != nil {
		return nil, n.err
	}
	return n.results, nil
}

func seedSignalModeStrategy(t *testing.T, st *store.Store, id string) *model.Strategy {
	t.Helper()
	strategy := &model.Strategy{
		ID: id, UserID: "u1", Status: model.StatusRunning, Name: "n", Symbol: "BTCUSDT",
		Timeframe: "1h", Leverage: 1, InitialCapital: 1000,
		ExecutionMode: model.ExecutionSignal, TradeDirection: model.DirectionBoth, MarketType: model.MarketSpot,
	}
	require.NoError(t, st.Strategies.Create(strategy))
	return strategy
}

func TestDispatchSignalModeMarksSentOnAnyChannelSuccess(t *testing.T) {
	st := openStore(t)
	strategy := seedSignalModeStrategy(t, st, "strat-signal")

	fn := &fakeNotifier{results: map[string]notifier.ChannelResult{
		"console": {OK: true},
		"webhook:bad": {OK: false, Error: "timeout"},
	}}
	w := New(st, &config.Config{}, fn, nil)

	order := &model.PendingOrder{StrategyID: strategy.ID, Symbol: "BTCUSDT", SignalType: model.SignalOpenLong,
		Amount: 1, Price: 100, ExecutionMode: model.ExecutionSignal}
	id, err := st.PendingOrders.Enqueue(order)
	require.NoError(t, err)
	order.ID = id

	ok, err := st.PendingOrders.Claim(id)
	require.NoError(t, err)
	require.True(t, ok)

	w.dispatch(order)

	reloaded, err := w.terminalStatus(id)
	require.NoError(t, err)
	assert.Equal(t, model.PendingStatusSent, reloaded)
	assert.Equal(t, 1, fn.calls)
}

func TestDispatchSignalModeMarksFailedWhenAllChannelsFail(t *testing.T) {
	st := openStore(t)
	strategy := seedSignalModeStrategy(t, st, "strat-signal-fail")

	fn := &fakeNotifier{results: map[string]notifier.ChannelResult{
		"webhook:bad": {OK: false, Error: "timeout"},
	}}
	w := New(st, &config.Config{}, fn, nil)

	order := &model.PendingOrder{StrategyID: strategy.ID, Symbol: "BTCUSDT", SignalType: model.SignalOpenLong,
		Amount: 1, Price: 100, ExecutionMode: model.ExecutionSignal}
	id, err := st.PendingOrders.Enqueue(order)
	require.NoError(t, err)
	order.ID = id
	_, err = st.PendingOrders.Claim(id)
	require.NoError(t, err)

	w.dispatch(order)

	reloaded, err := w.terminalStatus(id)
	require.NoError(t, err)
	assert.Equal(t, model.PendingStatusFailed, reloaded)
}

func TestMarkFailedEchoesToConsoleOnlyWhenEnabled(t *testing.T) {
	st := openStore(t)
	order := &model.PendingOrder{ID: 1, StrategyID: "s1", Symbol: "BTCUSDT"}

	captureStdout := func(f func()) string {
		r, w, err := os.Pipe()
		require.NoError(t, err)
		orig := os.Stdout
		os.Stdout = w
		f()
		w.Close()
		os.Stdout = orig
		out, _ := io.ReadAll(r)
		return string(out)
	}

	quiet := New(st, &config.Config{WorkerConsoleEcho: false}, nil, nil)
	out := captureStdout(func() { quiet.markFailed(order, "boom") })
	assert.Empty(t, out)

	loud := New(st, &config.Config{WorkerConsoleEcho: true}, nil, nil)
	out = captureStdout(func() { loud.markFailed(order, "boom") })
	assert.Contains(t, out, "boom")
}

func TestClaimIsExclusiveAcrossRepeatedCalls(t *testing.T) {
	st := openStore(t)
	order := &model.PendingOrder{StrategyID: "s1", Symbol: "BTCUSDT", SignalType: model.SignalOpenLong, Amount: 1, Price: 100}
	id, err := st.PendingOrders.Enqueue(order)
	require.NoError(t, err)

	ok1, err := st.PendingOrders.Claim(id)
	require.NoError(t, err)
	assert.True(t, ok1)

	ok2, err := st.PendingOrders.Claim(id)
	require.NoError(t, err)
	assert.False(t, ok2, "a second claim on an already-processing row must lose the race")
}
