package backtest

// Profile is a named bundle of threshold overrides
type Profile string

const (
	ProfileNone         Profile = "none"
	ProfileConservative Profile = "conservative"
	ProfileAggressive   Profile = "aggressive"
)

// PositionStatus classifies the open position's profitability
type PositionStatus string

const (
	StatusFlat    PositionStatus = "flat"
	StatusWinning PositionStatus = "winning"
	StatusLosing  PositionStatus = "losing"
	StatusNeutral PositionStatus = "neutral"
)

const (
	// ProfileStatusThreshold is the unrealized P/L fraction that separates
	// winning and losing positions from neutral ones.
	ProfileStatusThreshold = 0.10

	// ProfileHysteresisDays is how many consecutive days a classification
	// must hold before the profile switches.
	ProfileHysteresisDays = 3
)

// ProfileOverrides replaces the trailing and profit thresholds while a
// profile is active.
type ProfileOverrides struct {
	TrailingBuyActivationPercent  float64 `json:"trailingBuyActivationPercent"`
	TrailingBuyReboundPercent     float64 `json:"trailingBuyReboundPercent"`
	ProfitRequirement             float64 `json:"profitRequirement"`
	TrailingSellActivationPercent float64 `json:"trailingSellActivationPercent"`
	TrailingSellPullbackPercent   float64 `json:"trailingSellPullbackPercent"`
}

// Conservative buys late and sells early to protect a losing position;
// aggressive buys early and lets a winning position run.
var profileOverrides = map[Profile]ProfileOverrides{
	ProfileConservative: {
		TrailingBuyActivationPercent:  0.20,
		TrailingBuyReboundPercent:     0.10,
		ProfitRequirement:             0.05,
		TrailingSellActivationPercent: 0.0,
		TrailingSellPullbackPercent:   0.05,
	},
	ProfileAggressive: {
		TrailingBuyActivationPercent:  0.0,
		TrailingBuyReboundPercent:     0.05,
		ProfitRequirement:             0.20,
		TrailingSellActivationPercent: 0.20,
		TrailingSellPullbackPercent:   0.20,
	},
}

// OverridesFor returns the fixed thresholds of a profile; ok is false for
// ProfileNone.
func OverridesFor(p Profile) (ProfileOverrides, bool) {
	o, ok := profileOverrides[p]
	return o, ok
}

// ClassifyPosition maps an unrealized P/L fraction to a status. A flat
// position has no fraction and is always StatusFlat.
func ClassifyPosition(unrealizedFraction float64, holding bool) PositionStatus {
	switch {
	case !holding:
		return StatusFlat
	case unrealizedFraction >= ProfileStatusThreshold-priceTolerance:
		return StatusWinning
	case unrealizedFraction <= -ProfileStatusThreshold+priceTolerance:
		return StatusLosing
	default:
		return StatusNeutral
	}
}

// ProfileController switches between profiles after a classification
// persists for ProfileHysteresisDays.
type ProfileController struct {
	enabled  bool
	current  Profile
	last     PositionStatus
	hasLast  bool
	counter  int
	switches int
}

// NewProfileController creates a controller starting at ProfileNone. A
// disabled controller never leaves ProfileNone.
func NewProfileController(enabled bool) *ProfileController {
	return &ProfileController{enabled: enabled, current: ProfileNone}
}

// Observe records one day's classification and reports whether the
// profile switched.
func (c *ProfileController) Observe(status PositionStatus) bool {
	if !c.enabled {
		return false
	}

	class := status
	if class == StatusFlat {
		class = StatusNeutral
	}
	if c.hasLast && class == c.last {
		c.counter++
	} else {
		c.counter = 1
	}
	c.last = class
	c.hasLast = true

	var target Profile
	switch class {
	case StatusLosing:
		target = ProfileConservative
	case StatusWinning:
		target = ProfileAggressive
	default:
		return false
	}

	if c.counter < ProfileHysteresisDays || target == c.current {
		return false
	}
	c.current = target
	c.counter = 0
	c.switches++
	return true
}

// Current returns the active profile.
func (c *ProfileController) Current() Profile {
	return c.current
}

// Counter returns the number of consecutive days of the last classification
// since the last switch.
func (c *ProfileController) Counter() int {
	return c.counter
}

// Switches returns how many times the profile has changed.
func (c *ProfileController) Switches() int {
	return c.switches
}
