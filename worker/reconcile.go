package worker

import (
	"context"
	"math"
	"time"

	"quantdriver/exchange"
	"quantdriver/logger"
	"quantdriver/metrics"
	"quantdriver/model"
)

const reconcileDivergencePct = 0.01

// reconcileAll snapshots exchange positions for every running live-mode
// strategy and reconciles them against the local qd_strategy_positions
// rows. Spot strategies are skipped outright: a venue's spot balance
// mixes the strategy's holdings with assets it never opened, so it is
// not compared against the local position rows.
func (w *Worker) reconcileAll() {
	strategies, err := w.st.Strategies.ListRunning()
	if err != nil {
		logger.ErrorErr("reconcile: list running strategies failed", err)
		return
	}
	for _, strategy := range strategies {
		if strategy.ExecutionMode != model.ExecutionLive {
			continue
		}
		if strategy.MarketType == model.MarketSpot {
			continue
		}
		w.reconcileStrategy(strategy)
	}
}

func (w *Worker) reconcileStrategy(strategy *model.Strategy) {
	creds, err := venueCreds(strategy)
	if err != nil {
		logger.Warnf("reconcile %s: %v", strategy.ID, err)
		return
	}
	client, err := exchange.New(creds)
	if err != nil {
		logger.Warnf("reconcile %s: %v", strategy.ID, err)
		return
	}
	reconcileWithClient(w, strategy, client)
}

// reconcileWithClient is intentionally idempotent: re-running it against an
// unchanged exchange snapshot performs zero writes, since ghost rows are
// only deleted once and sizes are only written when they actually diverge.
// Split out from reconcileStrategy so tests can inject a scripted client.
func reconcileWithClient(w *Worker, strategy *model.Strategy, client exchange.ExchangeClient) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	remote, err := client.GetPositions(ctx, strategy.MarketType)
	if err != nil {
		logger.ErrorErr("reconcile: fetch exchange positions failed", err)
		return
	}
	remoteBySymbolSide := make(map[string]float64, len(remote))
	for _, r := range remote {
		remoteBySymbolSide[r.Symbol+"|"+string(r.Side)] = r.Size
	}

	local, err := w.st.Positions.ListForStrategy(strategy.ID)
	if err != nil {
		logger.ErrorErr("reconcile: list local positions failed", err)
		return
	}

	for _, p := range local {
		remoteSize, onExchange := remoteBySymbolSide[p.Symbol+"|"+string(p.Side)]
		if !onExchange || remoteSize <= 0 {
			metrics.ObserveReconcileDrift(strategy.ID, p.Symbol, p.Size, 0)
			// Ghost row: local thinks it's open, the exchange disagrees.
			if err := w.st.Positions.Close(strategy.ID, p.Symbol, p.Side); err != nil {
				logger.ErrorErr("reconcile: ghost cleanup failed", err)
			}
			continue
		}
		if diverges(p.Size, remoteSize) {
			metrics.ObserveReconcileDrift(strategy.ID, p.Symbol, p.Size, remoteSize)
			if err := w.st.Positions.SetSize(strategy.ID, p.Symbol, p.Side, remoteSize); err != nil {
				logger.ErrorErr("reconcile: size update failed", err)
			}
		}
	}
	// Positions open on the exchange but absent locally are never
	// materialized here: only the runner's own fills create position rows.
}

func diverges(local, remote float64) bool {
	if local <= 0 {
		return remote > 0
	}
	return math.Abs(local-remote)/math.Max(1, local) > reconcileDivergencePct
}
