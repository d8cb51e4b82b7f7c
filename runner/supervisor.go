package runner

import (
	"errors"
	"sync"

	"quantdriver/config"
	"quantdriver/entryfilter"
	"quantdriver/indicator"
	"quantdriver/marketdata"
	"quantdriver/model"
	"quantdriver/store"
)

// ErrAlreadyRunning is returned by Start when a Runner for the strategy
// already exists.
var ErrAlreadyRunning = errors.New("runner already running for this strategy")

// ErrCapReached is returned by Start when the configured concurrent-runner
// cap is already met.
var ErrCapReached = errors.New("strategy runner cap reached")

// Supervisor owns the set of live Runner handles, keyed by strategy_id, and
// enforces the configured concurrency cap. It holds no per-strategy
// trading state itself — that belongs exclusively to each Runner.
type Supervisor struct {
	mu      sync.Mutex
	runners map[string]*Runner

	st     *store.Store
	klines marketdata.KlineSource
	prices *marketdata.PriceCache
	eval   indicator.Evaluator
	filter entryfilter.Filter
	cfg    *config.Config
}

func NewSupervisor(st *store.Store, klines marketdata.KlineSource, prices *marketdata.PriceCache,
	eval indicator.Evaluator, filter entryfilter.Filter, cfg *config.Config) *Supervisor {
	return &Supervisor{
		runners: make(map[string]*Runner),
		st:      st,
		klines:  klines,
		prices:  prices,
		eval:    eval,
		filter:  filter,
		cfg:     cfg,
	}
}

// Start launches a Runner for the given strategy unless one is already
// running or the concurrency cap is reached.
func (sup *Supervisor) Start(st *model.Strategy) error {
	sup.mu.Lock()
	if _, exists := sup.runners[st.ID]; exists {
		sup.mu.Unlock()
		return ErrAlreadyRunning
	}
	if len(sup.runners) >= sup.cfg.StrategyMaxThreads {
		sup.mu.Unlock()
		return ErrCapReached
	}
	r := New(st, sup.st, sup.klines, sup.prices, sup.eval, sup.filter, sup.cfg)
	sup.runners[st.ID] = r
	sup.mu.Unlock()

	if err := sup.st.Strategies.SetStatus(st.ID, model.StatusRunning); err != nil {
		sup.mu.Lock()
		delete(sup.runners, st.ID)
		sup.mu.Unlock()
		return err
	}
	go r.Run()
	return nil
}

// Stop marks the strategy stopped, signals its Runner to stop, and waits
// for the Runner to exit.
func (sup *Supervisor) Stop(strategyID string) error {
	sup.mu.Lock()
	r, exists := sup.runners[strategyID]
	sup.mu.Unlock()
	if !exists {
		return nil
	}
	if err := sup.st.Strategies.SetStatus(strategyID, model.StatusStopped); err != nil {
		return err
	}
	r.Stop()
	sup.mu.Lock()
	delete(sup.runners, strategyID)
	sup.mu.Unlock()
	return nil
}

// Resume restarts every persisted running strategy, used on process boot
// to reconcile the in-memory Runner set with the durable status column.
func (sup *Supervisor) Resume() error {
	running, err := sup.st.Strategies.ListRunning()
	if err != nil {
		return err
	}
	for _, st := range running {
		if err := sup.Start(st); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			return err
		}
	}
	return nil
}

// Count returns the number of live Runners, for metrics.
func (sup *Supervisor) Count() int {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	return len(sup.runners)
}
