package handlers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/prices"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/sweep"
)

// Window selects the price series of a request: inline prices when given,
// otherwise the stored series between the optional dates.
type Window struct {
	Symbol    string                 `json:"symbol"`
	StartDate string                 `json:"startDate,omitempty"`
	EndDate   string                 `json:"endDate,omitempty"`
	Prices    []prices.PricePointDTO `json:"prices,omitempty"`
}

func (w Window) bounds() (time.Time, time.Time, error) {
	return prices.ParseWindow(w.StartDate, w.EndDate)
}

// DCARequest runs one symbol. Strategy fields sit at the top level; any
// field left out keeps its default.
type DCARequest struct {
	Window
	IncludeLog bool `json:"includeLog"`
	backtest.Params
}

// BatchRequest sweeps a grid of parameters around the top-level base params
type BatchRequest struct {
	Window
	Grid sweep.Grid `json:"grid"`
	// Top limits the ranked outcomes returned; 0 returns all
	Top int `json:"top,omitempty"`
	backtest.Params
}

// HoldingRequest is one symbol of a portfolio. Params, when present,
// overrides the portfolio's top-level params field by field.
type HoldingRequest struct {
	Symbol string                 `json:"symbol"`
	Prices []prices.PricePointDTO `json:"prices,omitempty"`
	Params json.RawMessage        `json:"params,omitempty"`
}

// PortfolioRequest runs several symbols against one cash pool
type PortfolioRequest struct {
	TotalCapital float64          `json:"totalCapital"`
	StartDate    string           `json:"startDate,omitempty"`
	EndDate      string           `json:"endDate,omitempty"`
	Holdings     []HoldingRequest `json:"holdings"`
	backtest.Params
}

// requestParams returns the defaults a request body is decoded over. Beta
// starts unset so a beta service can fill it.
func requestParams() backtest.Params {
	p := backtest.DefaultParams()
	p.Beta = 0
	return p
}

func newDCARequest() DCARequest {
	return DCARequest{Params: requestParams()}
}

func newBatchRequest() BatchRequest {
	return BatchRequest{Params: requestParams()}
}

func newPortfolioRequest() PortfolioRequest {
	return PortfolioRequest{Params: requestParams()}
}

// holdingParams merges a holding's overrides onto the portfolio params
func (r PortfolioRequest) holdingParams(h HoldingRequest) (backtest.Params, error) {
	p := r.Params
	if len(h.Params) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(h.Params, &p); err != nil {
		return p, fmt.Errorf("%w: invalid params for %s: %v", backtest.ErrInvalidConfig, h.Symbol, err)
	}
	return p, nil
}
