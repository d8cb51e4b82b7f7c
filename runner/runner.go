// Package runner is the Strategy Runner: one long-lived execution context
// per active strategy, ticking on a fixed interval to re-evaluate its
// indicator, walk the position state machine, and enqueue order intents.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"quantdriver/config"
	"quantdriver/entryfilter"
	"quantdriver/indicator"
	"quantdriver/logger"
	"quantdriver/marketdata"
	"quantdriver/metrics"
	"quantdriver/model"
	"quantdriver/store"
)

// Runner owns everything for exactly one strategy: its rolling candle
// frame, its dedup map, its last-tick bookkeeping. Nothing here is shared
// with any other Runner, per the concurrency model's per-strategy
// isolation rule.
type Runner struct {
	strategy *model.Strategy
	st       *store.Store
	klines   marketdata.KlineSource
	prices   *marketdata.PriceCache
	eval     indicator.Evaluator
	filter   entryfilter.Filter
	cfg      *config.Config

	timeframe time.Duration
	frame     *indicator.Frame
	lastFull  time.Time
	dedup     *dedupMap

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Runner; it does not start the tick loop.
func New(st *model.Strategy, storeRef *store.Store, klines marketdata.KlineSource, prices *marketdata.PriceCache,
	eval indicator.Evaluator, filter entryfilter.Filter, cfg *config.Config) *Runner {
	tf := parseTimeframe(st.Timeframe)
	return &Runner{
		strategy:  st,
		st:        storeRef,
		klines:    klines,
		prices:    prices,
		eval:      eval,
		filter:    filter,
		cfg:       cfg,
		timeframe: tf,
		dedup:     newDedupMap(2 * tf),
	}
}

// Run executes the cooperative tick loop until Stop is called or the
// persisted strategy status turns non-running. One goroutine per Runner.
func (r *Runner) Run() {
	r.stopCh = make(chan struct{})
	r.wg.Add(1)
	defer r.wg.Done()

	logger.Infof("runner started strategy_id=%s symbol=%s", r.strategy.ID, r.strategy.Symbol)
	metrics.RunnerRunning.WithLabelValues(r.strategy.ID).Set(1)
	defer metrics.RunnerRunning.WithLabelValues(r.strategy.ID).Set(0)

	ticker := time.NewTicker(r.cfg.TickInterval())
	defer ticker.Stop()

	r.runTick()

	for {
		select {
		case <-ticker.C:
			if !r.stillRunning() {
				logger.Infof("runner observed non-running status, exiting strategy_id=%s", r.strategy.ID)
				return
			}
			r.runTick()
		case <-r.stopCh:
			logger.Infof("runner stop signal received strategy_id=%s", r.strategy.ID)
			return
		}
	}
}

// Stop requests the loop exit and blocks until it has. Safe to call once.
func (r *Runner) Stop() {
	if r.stopCh == nil {
		return
	}
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Runner) stillRunning() bool {
	st, err := r.st.Strategies.Get(r.strategy.ID)
	if err != nil {
		logger.ErrorErr("runner status check failed", err)
		return true // don't kill the loop over a transient read error
	}
	return st != nil && st.Status == model.StatusRunning
}

func (r *Runner) runTick() {
	if err := r.tick(); err != nil {
		logger.ErrorErr(fmt.Sprintf("tick failed strategy_id=%s", r.strategy.ID), err)
	}
}

// tick is exactly one cadence step: (a) fetch price, (b) refresh candles,
// (c) recompute indicator, (d) evaluate triggers + server exits, (e)
// select and enqueue at most one signal, (f) refresh current_price.
func (r *Runner) tick() error {
	start := time.Now()
	defer func() {
		metrics.TickDuration.WithLabelValues(r.strategy.ID).Observe(time.Since(start).Seconds())
	}()

	price, err := r.prices.Get(r.strategy.Symbol)
	if err != nil {
		return fmt.Errorf("fetch price: %w", err)
	}

	if err := r.refreshCandles(price); err != nil {
		return fmt.Errorf("refresh candles: %w", err)
	}

	pos, err := r.openPosition()
	if err != nil {
		return fmt.Errorf("load position: %w", err)
	}

	evalState := r.buildEvalState(pos)
	newFrame, err := r.eval.Evaluate(r.strategy.IndicatorCode, r.frame, r.strategy.IndicatorParams, evalState)
	if err != nil {
		return fmt.Errorf("evaluate indicator: %w", err)
	}
	indicator.Normalize(newFrame, r.strategy.TradeDirection)
	r.frame = newFrame

	cands := extractCandidates(newFrame, r.strategy.Trading)
	cands = dropExpired(cands, time.Now(), r.timeframe)

	if sigType, reason, fired := serverExit(pos, price, r.strategy.Trading, r.strategy.Leverage); fired {
		cands = append(cands, candidate{
			signalType:   sigType,
			triggerPrice: price,
			timestamp:    candleOpen(time.Now(), r.timeframe),
			reason:       reason,
		})
	}

	var survivors []candidate
	for _, c := range cands {
		if passesTriggerFilter(c, price, r.strategy.Trading) {
			survivors = append(survivors, c)
		}
	}

	chosen := selectOne(survivors, pos.State(), r.strategy.TradeDirection)
	if chosen != nil {
		if err := r.handleSignal(*chosen, pos, price); err != nil {
			logger.ErrorErr(fmt.Sprintf("handle signal failed strategy_id=%s type=%s", r.strategy.ID, chosen.signalType), err)
		}
	}

	if pos != nil {
		_ = r.st.Positions.UpdateCurrentPrice(r.strategy.ID, r.strategy.Symbol, pos.Side, price)
	}
	return nil
}

func (r *Runner) openPosition() (*model.Position, error) {
	return r.st.Positions.Get(r.strategy.ID, r.strategy.Symbol)
}

func (r *Runner) buildEvalState(pos *model.Position) indicator.EvalState {
	st := indicator.EvalState{}
	if pos != nil && pos.Size > 0 {
		st.HighestPrice = pos.HighestPrice
		st.AvgEntryPrice = pos.EntryPrice
		if pos.Side == model.SideLong {
			st.Position = 1
		} else {
			st.Position = -1
		}
	}
	return st
}

// handleSignal runs the AI entry filter (for open_* only), sizes the
// order, applies the DB-side dedup guards, enqueues the pending order, and
// — in signal mode only — locally simulates the fill to advance the state
// machine.
func (r *Runner) handleSignal(c candidate, pos *model.Position, price float64) error {
	if c.signalType == model.SignalOpenLong || c.signalType == model.SignalOpenShort {
		if r.strategy.AIModel.Enabled && r.filter != nil {
			aiCfg := map[string]interface{}{
				"provider": r.strategy.AIModel.Provider,
				"model":    r.strategy.AIModel.Model,
				"params":   r.strategy.IndicatorParams,
			}
			aiStart := time.Now()
			allow, reason, _ := r.filter.Allow(context.Background(), r.strategy.ID, r.strategy.Symbol, c.signalType, aiCfg)
			metrics.AIFilterDuration.WithLabelValues(r.strategy.AIModel.Provider).Observe(time.Since(aiStart).Seconds())
			if !allow {
				r.rejectWithNotification(c.signalType, reason)
				return nil
			}
		}
	}

	if r.dedup.seenOrMark(r.strategy.Symbol, c.signalType, c.timestamp) {
		return nil // in-memory repeat guard
	}

	amount, promotedClose := r.sizeSignal(c, pos, price)
	signalType := c.signalType
	if promotedClose {
		signalType = closeEquivalent(signalType)
	}
	if amount <= 0 {
		return nil
	}

	dbDedup, err := r.checkDBDedup(signalType, c.timestamp)
	if err != nil {
		return fmt.Errorf("db dedup check: %w", err)
	}
	if dbDedup {
		return nil
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"reason":         string(c.reason),
		"trigger_price":  c.triggerPrice,
	})
	order := &model.PendingOrder{
		UserID:        r.strategy.UserID,
		StrategyID:    r.strategy.ID,
		Symbol:        r.strategy.Symbol,
		SignalType:    signalType,
		SignalTS:      c.timestamp,
		MarketType:    r.strategy.MarketType,
		OrderType:     r.orderType(),
		Amount:        amount,
		Price:         price,
		ExecutionMode: r.strategy.ExecutionMode,
		PayloadJSON:   string(payload),
	}
	id, err := r.st.PendingOrders.Enqueue(order)
	if err != nil {
		return fmt.Errorf("enqueue pending order: %w", err)
	}
	metrics.SignalsEmittedTotal.WithLabelValues(r.strategy.ID, string(signalType)).Inc()

	if r.strategy.ExecutionMode == model.ExecutionSignal {
		r.simulateFill(signalType, amount, price)
	}
	_ = id
	return nil
}

func (r *Runner) orderType() string {
	mode := r.strategy.Trading.OrderMode
	if mode == "" {
		mode = r.cfg.OrderMode
	}
	return mode
}

func closeEquivalent(t model.SignalType) model.SignalType {
	switch t {
	case model.SignalReduceLong:
		return model.SignalCloseLong
	case model.SignalReduceShort:
		return model.SignalCloseShort
	default:
		return t
	}
}

func (r *Runner) sizeSignal(c candidate, pos *model.Position, price float64) (amount float64, promotedClose bool) {
	switch c.signalType {
	case model.SignalOpenLong, model.SignalOpenShort, model.SignalAddLong, model.SignalAddShort:
		return openOrAddAmount(r.strategy.MarketType, r.strategy.Leverage, r.strategy.InitialCapital, r.strategy.Trading.PositionRatio, price), false
	case model.SignalReduceLong, model.SignalReduceShort:
		if pos == nil {
			return 0, false
		}
		frac := reduceFraction(frameBarFor(c))
		amt, promote := reduceAmount(pos.Size, frac)
		return amt, promote
	case model.SignalCloseLong, model.SignalCloseShort:
		if pos == nil {
			return 0, false
		}
		return pos.Size, false
	default:
		return 0, false
	}
}

// frameBarFor reconstructs the minimal indicator.Bar reduceFraction needs
// from a candidate, since candidates only carry the two size pointers
// forward rather than the whole bar.
func frameBarFor(c candidate) indicator.Bar {
	return indicator.Bar{ReduceSize: c.reduceSize, PositionSize: c.positionSize}
}

func (r *Runner) checkDBDedup(signalType model.SignalType, ts time.Time) (bool, error) {
	if signalType == model.SignalOpenLong || signalType == model.SignalOpenShort {
		return r.st.PendingOrders.ExistsExactDedup(r.strategy.ID, r.strategy.Symbol, signalType, ts)
	}
	return r.st.PendingOrders.RecentCooldownActive(r.strategy.ID, r.strategy.Symbol, signalType, 30*time.Second)
}

// simulateFill advances positions/trades locally in signal mode, since the
// Worker never touches them for non-live orders.
func (r *Runner) simulateFill(signalType model.SignalType, amount, price float64) {
	var side model.Side
	var err error
	switch signalType {
	case model.SignalOpenLong:
		side = model.SideLong
		err = r.st.Positions.Open(r.strategy.UserID, r.strategy.ID, r.strategy.Symbol, side, amount, price)
	case model.SignalOpenShort:
		side = model.SideShort
		err = r.st.Positions.Open(r.strategy.UserID, r.strategy.ID, r.strategy.Symbol, side, amount, price)
	case model.SignalAddLong:
		side = model.SideLong
		err = r.st.Positions.Add(r.strategy.ID, r.strategy.Symbol, side, amount, price)
	case model.SignalAddShort:
		side = model.SideShort
		err = r.st.Positions.Add(r.strategy.ID, r.strategy.Symbol, side, amount, price)
	case model.SignalReduceLong:
		side = model.SideLong
		err = r.st.Positions.Reduce(r.strategy.ID, r.strategy.Symbol, side, amount, price)
	case model.SignalReduceShort:
		side = model.SideShort
		err = r.st.Positions.Reduce(r.strategy.ID, r.strategy.Symbol, side, amount, price)
	case model.SignalCloseLong:
		side = model.SideLong
		err = r.st.Positions.Close(r.strategy.ID, r.strategy.Symbol, side)
	case model.SignalCloseShort:
		side = model.SideShort
		err = r.st.Positions.Close(r.strategy.ID, r.strategy.Symbol, side)
	}
	if err != nil {
		logger.ErrorErr("local fill simulation failed", err)
		return
	}
	trade := &model.Trade{
		UserID:     r.strategy.UserID,
		StrategyID: r.strategy.ID,
		Symbol:     r.strategy.Symbol,
		Type:       signalType,
		Price:      price,
		Amount:     amount,
		Value:      price * amount,
	}
	if err := r.st.Trades.Insert(trade); err != nil {
		logger.ErrorErr("trade record failed", err)
	}
}

func (r *Runner) rejectWithNotification(signalType model.SignalType, reason entryfilter.RejectReason) {
	metrics.AIFilterRejectedTotal.WithLabelValues(r.strategy.ID).Inc()
	n := &model.Notification{
		UserID:     r.strategy.UserID,
		StrategyID: r.strategy.ID,
		Symbol:     r.strategy.Symbol,
		SignalType: signalType,
		Title:      "Entry filtered",
		Message:    fmt.Sprintf("open signal rejected: %s", reason),
	}
	if err := r.st.Notifications.Insert(n); err != nil {
		logger.ErrorErr("notification insert failed", err)
	}
}
