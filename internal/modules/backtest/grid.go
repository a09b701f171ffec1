package backtest

// Counters carries the consecutive-trade state the calculator reads
type Counters struct {
	ConsecutiveBuys  int     `json:"consecutiveBuys"`
	ConsecutiveSells int     `json:"consecutiveSells"`
	LastSellPrice    float64 `json:"lastSellPrice,omitempty"`

	// GridAnchor is the price a flat position measures its grid drop from
	GridAnchor float64 `json:"gridAnchor"`
	// Reference is the session's first close
	Reference float64 `json:"reference"`
}

func (c *Counters) recordBuy() {
	c.ConsecutiveBuys++
	c.ConsecutiveSells = 0
}

func (c *Counters) recordSell(price float64) {
	c.ConsecutiveSells++
	c.ConsecutiveBuys = 0
	c.LastSellPrice = price
}

// Calculator collapses base parameters, the beta factor, the active profile
// and the consecutive-trade increments into one set of effective thresholds.
type Calculator struct {
	params   Params
	factor   float64
	sequence *Sequence
}

// NewCalculator creates a calculator for validated parameters.
func NewCalculator(params Params) (*Calculator, error) {
	params = params.withDefaults()
	c := &Calculator{params: params, factor: params.BetaFactor()}
	if params.EnableConsecutiveIncrementalSellProfit {
		seq, err := NewSequence(params.ConsecutiveSellSteps, 0, params.GridConsecutiveIncrement, params.ConsecutiveSellProfitCap)
		if err != nil {
			return nil, err
		}
		c.sequence = seq
	}
	return c, nil
}

// Factor returns the beta multiplier applied to scalable thresholds.
func (c *Calculator) Factor() float64 {
	return c.factor
}

// Effective returns the thresholds in force for a day. A base value of
// exactly zero stays zero whatever the modifiers.
func (c *Calculator) Effective(profile Profile, counters Counters) (Thresholds, error) {
	p := c.params

	th := Thresholds{
		GridIntervalPercent:           c.scale(p.GridIntervalPercent),
		ProfitRequirement:             c.scale(p.ProfitRequirement),
		StopLossPercent:               c.scale(p.StopLossPercent),
		TrailingBuyActivationPercent:  c.scale(p.TrailingBuyActivationPercent),
		TrailingBuyReboundPercent:     c.scale(p.TrailingBuyReboundPercent),
		TrailingSellActivationPercent: c.scale(p.TrailingSellActivationPercent),
		TrailingSellPullbackPercent:   c.scale(p.TrailingSellPullbackPercent),
	}

	if o, ok := OverridesFor(profile); ok {
		th.TrailingBuyActivationPercent = override(p.TrailingBuyActivationPercent, o.TrailingBuyActivationPercent)
		th.TrailingBuyReboundPercent = override(p.TrailingBuyReboundPercent, o.TrailingBuyReboundPercent)
		th.ProfitRequirement = override(p.ProfitRequirement, o.ProfitRequirement)
		th.TrailingSellActivationPercent = override(p.TrailingSellActivationPercent, o.TrailingSellActivationPercent)
		th.TrailingSellPullbackPercent = override(p.TrailingSellPullbackPercent, o.TrailingSellPullbackPercent)
	}

	if p.EnableConsecutiveIncrementalBuyGrid && th.GridIntervalPercent != 0 {
		th.GridIntervalPercent += p.GridConsecutiveIncrement * float64(counters.ConsecutiveBuys)
	}
	if c.sequence != nil && th.ProfitRequirement != 0 && counters.ConsecutiveSells > 0 {
		th.SellProfitIncrement = c.sequence.At(counters.ConsecutiveSells)
	}

	if p.MomentumBasedBuy {
		th.TrailingBuyActivationPercent = 0
	}
	if p.MomentumBasedSell {
		th.TrailingSellActivationPercent = 0
	}

	if err := th.check(); err != nil {
		return Thresholds{}, err
	}
	return th, nil
}

func (c *Calculator) scale(base float64) float64 {
	if base == 0 {
		return 0
	}
	return base * c.factor
}

// override keeps a disabled threshold disabled
func override(base, value float64) float64 {
	if base == 0 {
		return 0
	}
	return value
}

func (th Thresholds) check() error {
	values := map[string]float64{
		"gridIntervalPercent":           th.GridIntervalPercent,
		"profitRequirement":             th.ProfitRequirement,
		"stopLossPercent":               th.StopLossPercent,
		"trailingBuyActivationPercent":  th.TrailingBuyActivationPercent,
		"trailingBuyReboundPercent":     th.TrailingBuyReboundPercent,
		"trailingSellActivationPercent": th.TrailingSellActivationPercent,
		"trailingSellPullbackPercent":   th.TrailingSellPullbackPercent,
		"sellProfitIncrement":           th.SellProfitIncrement,
	}
	for _, name := range sortedKeys(values) {
		if !finite(values[name]) {
			return invariantError("effective %s is not finite", name)
		}
	}
	return nil
}
