package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantdriver/config"
	"quantdriver/exchange"
	"quantdriver/model"
)

func seedStrategy(t *testing.T, w *Worker, id string) *model.Strategy {
	t.Helper()
	strategy := &model.Strategy{
		ID: id, UserID: "u1", Status: model.StatusRunning, Name: "n", Symbol: "BTCUSDT",
		Timeframe: "1h", Leverage: 3, InitialCapital: 1000,
		ExecutionMode: model.ExecutionLive, TradeDirection: model.DirectionBoth, MarketType: model.MarketSwap,
		ExchangeID: "okx", ExchangeConfig: map[string]interface{}{"venue": "okx", "api_key": "k", "secret_key": "s"},
	}
	require.NoError(t, w.st.Strategies.Create(strategy))
	return strategy
}

func TestReconcileDeletesGhostPosition(t *testing.T) {
	st := openStore(t)
	w := &Worker{st: st, cfg: &config.Config{}}
	strategy := seedStrategy(t, w, "strat-ghost")

	require.NoError(t, st.Positions.Open(strategy.UserID, strategy.ID, "BTCUSDT", model.SideLong, 1, 100))

	client := &fakeClient{name: "okx"} // no remote positions reported
	reconcileWithClient(w, strategy, client)

	pos, err := st.Positions.Get(strategy.ID, "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, pos, "a locally-open position absent from the exchange must be deleted")
}

func TestReconcileUpdatesDivergedSize(t *testing.T) {
	st := openStore(t)
	w := &Worker{st: st, cfg: &config.Config{}}
	strategy := seedStrategy(t, w, "strat-diverge")

	require.NoError(t, st.Positions.Open(strategy.UserID, strategy.ID, "BTCUSDT", model.SideLong, 1, 100))

	client := &fakeClient{name: "okx", positions: []exchange.PositionSnapshot{
		{Symbol: "BTCUSDT", Side: model.SideLong, Size: 1.5},
	}}
	reconcileWithClient(w, strategy, client)

	pos, err := st.Positions.Get(strategy.ID, "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.InDelta(t, 1.5, pos.Size, 1e-9)
}

// With a dust-sized local position, an un-floored relative divergence check
// would fire on the tiniest absolute exchange noise (e.g. 0.01 vs 0.011 is a
// 10% relative gap). The max(1, local) floor keeps sub-unit positions from
// spuriously triggering a reconcile write.
func TestReconcileDivergesUsesFloorForSubUnitLocalSize(t *testing.T) {
	st := openStore(t)
	w := &Worker{st: st, cfg: &config.Config{}}
	strategy := seedStrategy(t, w, "strat-dust")

	require.NoError(t, st.Positions.Open(strategy.UserID, strategy.ID, "BTCUSDT", model.SideLong, 0.01, 100))

	client := &fakeClient{name: "okx", positions: []exchange.PositionSnapshot{
		{Symbol: "BTCUSDT", Side: model.SideLong, Size: 0.011},
	}}
	reconcileWithClient(w, strategy, client)

	pos, err := st.Positions.Get(strategy.ID, "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.InDelta(t, 0.01, pos.Size, 1e-9, "sub-unit noise below the floored threshold must not trigger an update")
}

func TestReconcileIsIdempotentOnRerun(t *testing.T) {
	st := openStore(t)
	w := &Worker{st: st, cfg: &config.Config{}}
	strategy := seedStrategy(t, w, "strat-idem")
	require.NoError(t, st.Positions.Open(strategy.UserID, strategy.ID, "BTCUSDT", model.SideLong, 1, 100))

	client := &fakeClient{name: "okx"} // stays flat on the exchange both runs
	reconcileWithClient(w, strategy, client)
	reconcileWithClient(w, strategy, client) // second pass: nothing left to clean up

	pos, err := st.Positions.Get(strategy.ID, "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, pos)
}
