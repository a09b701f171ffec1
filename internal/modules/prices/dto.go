package prices

import (
	"fmt"
	"time"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
)

// PricePointDTO is a price point with a plain YYYY-MM-DD date
type PricePointDTO struct {
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjClose"`
	Volume   int64   `json:"volume"`
}

// ToPoints converts DTOs to engine price points
func ToPoints(dtos []PricePointDTO) ([]backtest.PricePoint, error) {
	points := make([]backtest.PricePoint, 0, len(dtos))
	for i, d := range dtos {
		date, err := time.Parse(dateLayout, d.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: price %d has invalid date %q", backtest.ErrInvalidConfig, i, d.Date)
		}
		points = append(points, backtest.PricePoint{
			Date:     date,
			Open:     d.Open,
			High:     d.High,
			Low:      d.Low,
			Close:    d.Close,
			AdjClose: d.AdjClose,
			Volume:   d.Volume,
		})
	}
	return points, nil
}

// FromPoints converts engine price points to DTOs
func FromPoints(points []backtest.PricePoint) []PricePointDTO {
	dtos := make([]PricePointDTO, len(points))
	for i, p := range points {
		dtos[i] = PricePointDTO{
			Date:     p.Date.Format(dateLayout),
			Open:     p.Open,
			High:     p.High,
			Low:      p.Low,
			Close:    p.Close,
			AdjClose: p.AdjClose,
			Volume:   p.Volume,
		}
	}
	return dtos
}

// ParseWindow parses optional YYYY-MM-DD bounds. An empty string yields the
// zero time, which GetRange treats as unbounded.
func ParseWindow(start, end string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if start != "" {
		if from, err = time.Parse(dateLayout, start); err != nil {
			return from, to, fmt.Errorf("%w: invalid startDate %q", backtest.ErrInvalidConfig, start)
		}
	}
	if end != "" {
		if to, err = time.Parse(dateLayout, end); err != nil {
			return from, to, fmt.Errorf("%w: invalid endDate %q", backtest.ErrInvalidConfig, end)
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, fmt.Errorf("%w: endDate %s is before startDate %s", backtest.ErrInvalidConfig, end, start)
	}
	return from, to, nil
}
