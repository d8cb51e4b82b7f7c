// Package indicator defines the pure-function boundary the Runner calls
// into on every tick, plus the normalization step that expands a simple
// {buy, sell} pair into the engine's full four-way signal set.
package indicator

import (
	"time"

	"quantdriver/model"
)

// Bar is one OHLCV candle.
type Bar struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64

	// Signal columns, populated by Evaluate. Either the simple pair or the
	// expanded set is expected to be set; Normalize fills in the rest.
	Buy  bool
	Sell bool

	OpenLong   bool
	CloseLong  bool
	OpenShort  bool
	CloseShort bool
	AddLong    bool
	AddShort   bool
	ReduceLong bool
	ReduceShort bool

	ReduceSize   *float64
	PositionSize *float64
}

// Frame is a rolling window of bars, oldest first.
type Frame struct {
	Bars []Bar
}

// EvalState is the injected state the Evaluator needs to make stateful
// decisions (e.g. scale-in counters) without owning storage itself.
type EvalState struct {
	HighestPrice    float64
	Position        int // -1 short, 0 flat, 1 long
	AvgEntryPrice   float64
	PositionCount   int
	LastAddPrice    float64
}

// Evaluator is the external capability that annotates a Frame with signal
// columns. Implementations may back it with a sandboxed script VM, a
// precompiled plugin, or (in tests) a plain Go closure.
type Evaluator interface {
	Evaluate(code string, frame *Frame, params map[string]interface{}, state EvalState) (*Frame, error)
}

// EvaluatorFunc adapts a plain function to the Evaluator interface.
type EvaluatorFunc func(code string, frame *Frame, params map[string]interface{}, state EvalState) (*Frame, error)

func (f EvaluatorFunc) Evaluate(code string, frame *Frame, params map[string]interface{}, state EvalState) (*Frame, error) {
	return f(code, frame, params, state)
}

// Normalize expands a bar that only carries {Buy, Sell} into the full
// four-way column set according to trade_direction. Bars already carrying
// expanded columns are left untouched. This must run before the
// signal-extraction sweep so legacy scripts still exercise the full state
// machine.
func Normalize(frame *Frame, direction model.TradeDirection) {
	for i := range frame.Bars {
		b := &frame.Bars[i]
		if b.OpenLong || b.CloseLong || b.OpenShort || b.CloseShort || b.AddLong || b.AddShort || b.ReduceLong || b.ReduceShort {
			continue // already expanded
		}
		switch direction {
		case model.DirectionLong:
			b.OpenLong = b.Buy
			b.CloseLong = b.Sell
		case model.DirectionShort:
			b.OpenShort = b.Sell
			b.CloseShort = b.Buy
		default: // both
			b.OpenLong = b.Buy
			b.CloseShort = b.Buy
			b.OpenShort = b.Sell
			b.CloseLong = b.Sell
		}
	}
}
