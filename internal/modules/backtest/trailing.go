package backtest

import "math"

// StopSide selects which direction a trailing stop trades
type StopSide string

const (
	SideBuy  StopSide = "buy"
	SideSell StopSide = "sell"
)

// StopStatus is the state of a trailing stop
type StopStatus string

const (
	StopIdle      StopStatus = "idle"
	StopArmed     StopStatus = "armed"
	StopTriggered StopStatus = "triggered"
)

// priceTolerance absorbs float rounding when comparing a close against a
// threshold derived from a percentage, so 100 × (1 - 0.1) still matches 90.
const priceTolerance = 1e-9

func atOrBelow(price, limit float64) bool {
	return price <= limit+math.Abs(limit)*priceTolerance
}

func atOrAbove(price, limit float64) bool {
	return price >= limit-math.Abs(limit)*priceTolerance
}

// StopState is a read-only snapshot of a trailing stop
type StopState struct {
	Status       StopStatus `json:"status"`
	Reference    float64    `json:"reference"`
	Extreme      float64    `json:"extreme,omitempty"`
	ArmReference float64    `json:"armReference,omitempty"`
	Activation   float64    `json:"activation"`
	Reversal     float64    `json:"reversal"`
}

// TrailingStop is the arm/execute/cancel machine shared by both sides.
//
// Buy side: while idle it follows the highest close since its last reset.
// A drop of activation below that peak arms it, the trough then trails
// the market down, and a rebound of reversal off the trough makes it ready
// to execute. A close back above the peak it armed against cancels it.
//
// Sell side mirrors this with a trough reference, a rising peak and a
// pullback reversal.
type TrailingStop struct {
	side   StopSide
	status StopStatus

	reference    float64
	hasReference bool
	extreme      float64
	armReference float64

	activation float64
	reversal   float64
}

// NewTrailingStop creates an idle machine without a reference price.
func NewTrailingStop(side StopSide) *TrailingStop {
	return &TrailingStop{side: side, status: StopIdle}
}

// Advance feeds one close into the machine and reports whether it is
// triggered. A triggered machine must be resolved the same day with either
// Executed or Hold.
//
// The activation and reversal passed in are adopted only while idle; an
// armed machine keeps the values copied when it armed until Refresh.
func (t *TrailingStop) Advance(price, activation, reversal float64) bool {
	if t.status == StopIdle {
		t.activation = activation
		t.reversal = reversal
	}
	if !t.hasReference {
		t.setReference(price)
		return false
	}

	if t.status == StopArmed {
		t.extreme = t.further(t.extreme, price)
	}

	if t.status == StopIdle {
		if !t.armCrossed(t.reference, price) {
			t.reference = t.nearer(t.reference, price)
			return false
		}
		t.status = StopArmed
		t.armReference = t.reference
		t.extreme = price
	}

	if t.recovered(price) {
		t.cancel(price)
		return false
	}

	if t.reversed(price) {
		t.status = StopTriggered
		return true
	}
	return false
}

// Executed returns a triggered machine to idle and restarts tracking at close.
func (t *TrailingStop) Executed(price float64) {
	t.Reset(price)
}

// Hold keeps a triggered machine armed when a guard blocked execution.
func (t *TrailingStop) Hold() {
	if t.status == StopTriggered {
		t.status = StopArmed
	}
}

// Reset returns the machine to idle with close as the new reference.
func (t *TrailingStop) Reset(price float64) {
	t.status = StopIdle
	t.extreme = 0
	t.armReference = 0
	t.setReference(price)
}

// ResetIfIdle restarts tracking at close unless the machine is armed.
func (t *TrailingStop) ResetIfIdle(price float64) {
	if t.status == StopIdle {
		t.setReference(price)
	}
}

// Track follows the market without arming; an armed machine is cancelled.
func (t *TrailingStop) Track(price, activation, reversal float64) {
	if t.status != StopIdle {
		t.cancel(price)
	}
	t.activation = activation
	t.reversal = reversal
	if !t.hasReference {
		t.setReference(price)
		return
	}
	t.reference = t.nearer(t.reference, price)
}

// Refresh applies new thresholds to an armed machine immediately. If the
// armed position is no longer valid under the new activation, the machine
// is cancelled and restarts tracking at close. It reports whether it
// cancelled.
func (t *TrailingStop) Refresh(activation, reversal, price float64) bool {
	t.activation = activation
	t.reversal = reversal
	if t.status == StopIdle {
		return false
	}
	if !t.armCrossed(t.armReference, t.extreme) {
		t.cancel(price)
		return true
	}
	return false
}

// State returns a snapshot of the machine.
func (t *TrailingStop) State() StopState {
	return StopState{
		Status:       t.status,
		Reference:    t.reference,
		Extreme:      t.extreme,
		ArmReference: t.armReference,
		Activation:   t.activation,
		Reversal:     t.reversal,
	}
}

// Status returns the current machine status.
func (t *TrailingStop) Status() StopStatus {
	return t.status
}

// Armed reports whether the machine is armed or triggered.
func (t *TrailingStop) Armed() bool {
	return t.status != StopIdle
}

func (t *TrailingStop) cancel(price float64) {
	t.Reset(price)
}

func (t *TrailingStop) setReference(price float64) {
	t.reference = price
	t.hasReference = true
}

// armCrossed reports whether price has moved activation away from ref in
// the direction that arms this side.
func (t *TrailingStop) armCrossed(ref, price float64) bool {
	if t.side == SideBuy {
		return atOrBelow(price, ref*(1-t.activation))
	}
	return atOrAbove(price, ref*(1+t.activation))
}

// reversed reports whether close has come back reversal off the extreme.
func (t *TrailingStop) reversed(price float64) bool {
	if t.side == SideBuy {
		return atOrAbove(price, t.extreme*(1+t.reversal))
	}
	return atOrBelow(price, t.extreme*(1-t.reversal))
}

// recovered reports whether close is back past the reference the machine
// armed against.
func (t *TrailingStop) recovered(price float64) bool {
	if t.side == SideBuy {
		return price > t.armReference
	}
	return price < t.armReference
}

// further returns whichever price extends the armed extreme.
func (t *TrailingStop) further(extreme, price float64) float64 {
	if t.side == SideBuy {
		return math.Min(extreme, price)
	}
	return math.Max(extreme, price)
}

// nearer returns whichever price moves the idle reference away from arming.
func (t *TrailingStop) nearer(ref, price float64) float64 {
	if t.side == SideBuy {
		return math.Max(ref, price)
	}
	return math.Min(ref, price)
}
