package backtest

import (
	"time"

	"github.com/rs/zerolog"
)

var testStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func series(closes ...float64) []PricePoint {
	points := make([]PricePoint, len(closes))
	for i, c := range closes {
		points[i] = PricePoint{
			Date:     testStart.AddDate(0, 0, i),
			Open:     c,
			High:     c,
			Low:      c,
			Close:    c,
			AdjClose: c,
			Volume:   1000,
		}
	}
	return points
}

// plainParams disables every optional feature: no trailing, no stop loss,
// no scaling.
func plainParams() Params {
	return Params{
		LotSizeUSD:          1000,
		MaxLots:             10,
		GridIntervalPercent: 0.1,
		ProfitRequirement:   0.1,
		Beta:                1.0,
		Coefficient:         1.0,
	}
}

func quietLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}
