package prices

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
)

// column aliases accepted in a CSV header, lowercased with spaces and
// underscores removed
var columnAliases = map[string]string{
	"date":     "date",
	"open":     "open",
	"high":     "high",
	"low":      "low",
	"close":    "close",
	"adjclose": "adj_close",
	"volume":   "volume",
}

// LoadCSV parses a daily price file with a header row. Required columns are
// date and close; open, high, low, adj_close and volume are optional.
// Rows are returned in ascending date order; duplicate dates are an error.
func LoadCSV(r io.Reader) ([]backtest.PricePoint, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty csv", ErrNoPrices)
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	columns := make(map[string]int)
	for i, name := range header {
		key := strings.ToLower(strings.NewReplacer(" ", "", "_", "").Replace(strings.TrimSpace(name)))
		if col, ok := columnAliases[key]; ok {
			columns[col] = i
		}
	}
	for _, required := range []string{"date", "close"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("csv is missing required column %q", required)
		}
	}

	var points []backtest.PricePoint
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		p, err := parseRecord(record, columns)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		points = append(points, p)
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("%w: csv has no rows", ErrNoPrices)
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	if err := backtest.ValidatePrices(points); err != nil {
		return nil, err
	}
	return points, nil
}

func parseRecord(record []string, columns map[string]int) (backtest.PricePoint, error) {
	var p backtest.PricePoint

	field := func(name string) (string, bool) {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return "", false
		}
		v := strings.TrimSpace(record[i])
		return v, v != ""
	}
	number := func(name string) (float64, error) {
		v, ok := field(name)
		if !ok {
			return 0, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", name, v)
		}
		return f, nil
	}

	date, ok := field("date")
	if !ok {
		return p, fmt.Errorf("missing date")
	}
	// Some exports append a time component
	if len(date) > len(dateLayout) {
		date = date[:len(dateLayout)]
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return p, fmt.Errorf("invalid date %q", date)
	}
	p.Date = d

	if p.Close, err = number("close"); err != nil {
		return p, err
	}
	if p.Open, err = number("open"); err != nil {
		return p, err
	}
	if p.High, err = number("high"); err != nil {
		return p, err
	}
	if p.Low, err = number("low"); err != nil {
		return p, err
	}
	if p.AdjClose, err = number("adj_close"); err != nil {
		return p, err
	}
	if p.AdjClose == 0 {
		p.AdjClose = p.Close
	}
	if v, ok := field("volume"); ok {
		vol, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, fmt.Errorf("invalid volume %q", v)
		}
		p.Volume = int64(vol)
	}

	if reason := ValidateOHLC(p); reason != "" {
		return p, fmt.Errorf("invalid price on %s: %s", date, reason)
	}
	return p, nil
}
