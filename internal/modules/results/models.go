// Package results stores completed backtest runs so they can be listed and
// fetched again after the request that produced them.
package results

import (
	"time"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
)

// Kind says which API produced a run
type Kind string

const (
	KindDCA       Kind = "dca"
	KindBatch     Kind = "batch"
	KindPortfolio Kind = "portfolio"
)

// Run is one stored backtest
type Run struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Symbol    string    `json:"symbol"`
	CreatedAt time.Time `json:"createdAt"`

	Params  backtest.Params  `json:"params"`
	Summary backtest.Summary `json:"summary"`

	// Payload fields are only populated by Get
	Transactions []backtest.Transaction `json:"transactions,omitempty"`
	EquityCurve  []backtest.EquityPoint `json:"equityCurve,omitempty"`
	Log          string                 `json:"log,omitempty"`
}

// payload is the msgpack-encoded body of a run
type payload struct {
	Transactions []backtest.Transaction `msgpack:"transactions"`
	EquityCurve  []backtest.EquityPoint `msgpack:"equity_curve"`
	Log          string                 `msgpack:"log"`
}

// FromResult builds an unsaved run from an engine result.
func FromResult(kind Kind, res *backtest.Result) *Run {
	return &Run{
		Kind:         kind,
		Symbol:       res.Symbol,
		Params:       res.Params,
		Summary:      res.Summary,
		Transactions: res.Transactions,
		EquityCurve:  res.EquityCurve,
		Log:          res.Log,
	}
}
