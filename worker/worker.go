// Package worker is the Pending-Order Worker: a single background
// dispatcher that claims queued order intents and routes them to either
// the notification pipeline (signal mode) or a venue execution adapter
// (live mode), on the same ticker-driven poll loop every long-lived
// component in this engine uses.
package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quantdriver/config"
	"quantdriver/exchange"
	"quantdriver/logger"
	"quantdriver/marketdata"
	"quantdriver/metrics"
	"quantdriver/model"
	"quantdriver/notifier"
	"quantdriver/store"
)

// Worker claims and dispatches pending_orders rows. It owns no
// per-strategy trading state; every logical operation is a short-lived
// store transaction, per the concurrency model.
type Worker struct {
	st       *store.Store
	cfg      *config.Config
	notify   notifier.Notifier
	prices   *marketdata.PriceCache

	stopCh chan struct{}
}

func New(st *store.Store, cfg *config.Config, notify notifier.Notifier, prices *marketdata.PriceCache) *Worker {
	return &Worker{st: st, cfg: cfg, notify: notify, prices: prices}
}

// Run polls continuously until Stop is called, matching the ticker-driven
// loop shape every other long-lived component in this engine uses.
func (w *Worker) Run() {
	w.stopCh = make(chan struct{})
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	reconcileTicker := time.NewTicker(w.cfg.PositionSyncInterval())
	defer reconcileTicker.Stop()

	logger.Info("pending-order worker started")
	for {
		select {
		case <-ticker.C:
			w.pollOnce()
		case <-reconcileTicker.C:
			if w.cfg.PositionSyncEnabled {
				w.reconcileAll()
			}
		case <-w.stopCh:
			logger.Info("pending-order worker stopped")
			return
		}
	}
}

func (w *Worker) Stop() {
	if w.stopCh != nil {
		close(w.stopCh)
	}
}

// pollOnce is one poll/claim/dispatch sweep: requeue anything stuck in
// processing past the stale window, then claim and dispatch a batch.
func (w *Worker) pollOnce() {
	if n, err := w.st.PendingOrders.RequeueStale(w.cfg.PendingOrderStale()); err != nil {
		logger.ErrorErr("requeue stale failed", err)
	} else if n > 0 {
		logger.Infof("requeued %d stale processing rows", n)
	}

	if counts, err := w.st.PendingOrders.CountByStatus(); err == nil {
		for status, n := range counts {
			metrics.QueueDepth.WithLabelValues(string(status)).Set(float64(n))
		}
	}

	batch, err := w.st.PendingOrders.PollBatch(w.cfg.PendingOrderBatchSize)
	if err != nil {
		logger.ErrorErr("poll batch failed", err)
		return
	}
	for _, order := range batch {
		ok, err := w.st.PendingOrders.Claim(order.ID)
		if err != nil {
			logger.ErrorErr(fmt.Sprintf("claim failed id=%d", order.ID), err)
			continue
		}
		if !ok {
			continue // another poller won the race
		}
		w.dispatch(order)
	}
}

// markFailed records the rejection and, when WORKER_CONSOLE_ECHO is set,
// mirrors it to stdout as a human-readable one-liner alongside the
// structured log record.
func (w *Worker) markFailed(order *model.PendingOrder, reason string) {
	_ = w.st.PendingOrders.MarkFailed(order.ID, reason)
	if w.cfg.WorkerConsoleEcho {
		fmt.Printf("[worker] rejected order id=%d strategy=%s symbol=%s: %s\n",
			order.ID, order.StrategyID, order.Symbol, reason)
	}
}

func (w *Worker) dispatch(order *model.PendingOrder) {
	start := time.Now()
	strategy, err := w.st.Strategies.Get(order.StrategyID)
	if err != nil || strategy == nil {
		w.markFailed(order, "config_invalid: strategy not found")
		return
	}

	// Auto execution-mode upgrade: a legacy-enqueued row's mode is
	// superseded by the strategy's current configuration at dispatch time.
	effectiveMode := strategy.ExecutionMode
	if effectiveMode == "" {
		effectiveMode = order.ExecutionMode
	}

	if effectiveMode == model.ExecutionSignal {
		w.dispatchSignal(order, strategy)
	} else {
		w.dispatchLive(order, strategy)
	}
	metrics.DispatchDuration.WithLabelValues(string(effectiveMode)).Observe(time.Since(start).Seconds())

	if status, err := w.terminalStatus(order.ID); err == nil {
		metrics.DispatchResultTotal.WithLabelValues(string(effectiveMode), string(status)).Inc()
	}
}

// terminalStatus re-reads the row's status after dispatch settles it, for
// the dispatch-result counter.
func (w *Worker) terminalStatus(id int64) (model.PendingOrderStatus, error) {
	var status string
	err := w.st.DB().QueryRow(`SELECT status FROM pending_orders WHERE id = ?`, id).Scan(&status)
	return model.PendingOrderStatus(status), err
}

func (w *Worker) dispatchSignal(order *model.PendingOrder, strategy *model.Strategy) {
	results, err := w.notify.Notify(strategy.ID, strategy.Name, order.Symbol, order.SignalType,
		order.Price, order.Amount, strategy.TradeDirection, strategy.NotificationCfg, map[string]interface{}{"execution_mode": "signal"})
	if err != nil {
		w.markFailed(order, err.Error())
		return
	}
	var oks, fails []string
	var firstErr string
	for ch, r := range results {
		if r.OK {
			oks = append(oks, ch)
		} else {
			fails = append(fails, ch)
			if firstErr == "" {
				firstErr = r.Error
			}
		}
	}
	if len(oks) > 0 {
		note := fmt.Sprintf("notified_ok=%s;fail=%s", strings.Join(oks, ","), strings.Join(fails, ","))
		_ = w.st.PendingOrders.MarkSent(order.ID, order.Amount, order.Price, "", "", note)
		return
	}
	w.markFailed(order, firstErr)
}

func (w *Worker) dispatchLive(order *model.PendingOrder, strategy *model.Strategy) {
	category := strategy.Trading.MarketCategory
	creds, err := venueCreds(strategy)
	if err != nil {
		w.markFailed(order, err.Error())
		return
	}
	client, err := exchange.New(creds)
	if err != nil {
		w.markFailed(order, err.Error())
		return
	}

	// Market-category guardrail.
	if category != "" && client.MarketCategory() != category {
		w.markFailed(order, fmt.Sprintf("config_invalid: exchange %s does not serve market category %s", client.Name(), category))
		w.notifyBestEffort(strategy, order, false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	refPrice := order.Price
	if w.prices != nil {
		if p, err := w.prices.Get(order.Symbol); err == nil {
			refPrice = p
		}
	}

	res := w.executeLive(ctx, order, client, refPrice, strategy.Leverage)
	if order.Amount > 0 {
		metrics.FillRate.WithLabelValues(client.Name()).Observe(res.filled / order.Amount)
	}
	if res.failed {
		w.markFailed(order, res.failErr)
		w.notifyBestEffort(strategy, order, false)
		return
	}

	settle(w.st, order, res.filled, res.avgPrice, res.fee, res.feeCcy)
	_ = w.st.PendingOrders.MarkSent(order.ID, res.filled, res.avgPrice, res.exchangeID, res.responseJSON, res.note)
	w.notifyBestEffort(strategy, order, true)
}

// notifyBestEffort fires a live-mode dispatch notification (on both sent
// and failed) when the strategy has a notification config, per §7's
// user-visible behavior rule. Errors here are logged, never escalated.
func (w *Worker) notifyBestEffort(strategy *model.Strategy, order *model.PendingOrder, ok bool) {
	if len(strategy.NotificationCfg) == 0 || w.notify == nil {
		return
	}
	extra := map[string]interface{}{"execution_mode": "live", "ok": ok}
	if _, err := w.notify.Notify(strategy.ID, strategy.Name, order.Symbol, order.SignalType,
		order.Price, order.Amount, strategy.TradeDirection, strategy.NotificationCfg, extra); err != nil {
		logger.ErrorErr("live dispatch notification failed", err)
	}
}

func venueCreds(strategy *model.Strategy) (exchange.VenueCredentials, error) {
	cfg := strategy.ExchangeConfig
	get := func(k string) string {
		v, _ := cfg[k].(string)
		return v
	}
	venue := strategy.ExchangeID
	if venue == "" {
		venue = get("venue")
	}
	if venue == "" {
		return exchange.VenueCredentials{}, fmt.Errorf("config_invalid: missing exchange venue")
	}
	testnet, _ := cfg["testnet"].(bool)
	return exchange.VenueCredentials{
		Venue:      venue,
		APIKey:     get("api_key"),
		SecretKey:  get("secret_key"),
		Passphrase: get("passphrase"),
		WalletAddr: get("wallet_addr"),
		Testnet:    testnet,
	}, nil
}
