package prices

import "github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"

// ValidateOHLC checks one price point for internal consistency.
// Returns an empty string when valid, otherwise a short reason.
func ValidateOHLC(p backtest.PricePoint) string {
	if p.Date.IsZero() {
		return "missing_date"
	}
	if p.Close <= 0 {
		return "non_positive_close"
	}
	if p.Volume < 0 {
		return "negative_volume"
	}

	// OHLC consistency only applies when the bar is complete
	if p.High == 0 && p.Low == 0 && p.Open == 0 {
		return ""
	}
	if p.High < p.Low {
		return "high_below_low"
	}
	if p.High < p.Open {
		return "high_below_open"
	}
	if p.High < p.Close {
		return "high_below_close"
	}
	if p.Low > p.Open {
		return "low_above_open"
	}
	if p.Low > p.Close {
		return "low_above_close"
	}
	return ""
}
