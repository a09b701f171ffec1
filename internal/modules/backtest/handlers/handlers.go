// Package handlers provides HTTP handlers for running and browsing backtests.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/beta"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/portfolio"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/prices"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/results"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/sweep"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies, which may carry inline price series
const maxBodyBytes = 16 << 20

// PriceStore provides stored daily prices
type PriceStore interface {
	GetRange(ctx context.Context, symbol string, from, to time.Time) ([]backtest.PricePoint, error)
}

// BetaResolver fills in a symbol's beta when a request leaves it unset
type BetaResolver interface {
	Apply(ctx context.Context, symbol string, params *backtest.Params) beta.Lookup
}

// RunStore persists completed runs
type RunStore interface {
	Save(ctx context.Context, run *results.Run) error
	Get(ctx context.Context, id string) (*results.Run, error)
	List(ctx context.Context, symbol string, limit int) ([]results.Run, error)
}

// Observer records backtest activity
type Observer interface {
	ObserveRun(kind string, elapsed time.Duration, res *backtest.Result, err error)
	ObserveSweep(combinations int)
}

// Handler handles backtest HTTP requests
type Handler struct {
	prices    PriceStore
	betas     BetaResolver
	runs      RunStore
	sweeps    *sweep.Runner
	portfolio *portfolio.Runner
	observer  Observer
	log       zerolog.Logger
}

// NewHandler creates a new backtest handler
func NewHandler(
	prices PriceStore,
	betas BetaResolver,
	runs RunStore,
	sweeps *sweep.Runner,
	portfolioRunner *portfolio.Runner,
	observer Observer,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		prices:    prices,
		betas:     betas,
		runs:      runs,
		sweeps:    sweeps,
		portfolio: portfolioRunner,
		observer:  observer,
		log:       log.With().Str("handler", "backtest").Logger(),
	}
}

// DCAResponse is the body of a single-symbol run
type DCAResponse struct {
	RunID  string           `json:"runId,omitempty"`
	Beta   beta.Lookup      `json:"beta"`
	Result *backtest.Result `json:"result"`
}

// HandleRunDCA runs one symbol and stores the run
func (h *Handler) HandleRunDCA(w http.ResponseWriter, r *http.Request) {
	req := newDCARequest()
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	start := time.Now()
	resp, err := h.runDCA(r.Context(), req)
	var res *backtest.Result
	if resp != nil {
		res = resp.Result
	}
	h.observer.ObserveRun(string(results.KindDCA), time.Since(start), res, err)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) runDCA(ctx context.Context, req DCARequest) (*DCAResponse, error) {
	series, err := h.loadSeries(ctx, req.Window)
	if err != nil {
		return nil, err
	}

	params := req.Params
	lookup := h.betas.Apply(ctx, req.Symbol, &params)

	res, err := backtest.Run(ctx, req.Symbol, series, params, backtest.WithLogger(h.log))
	if err != nil {
		return nil, err
	}

	resp := &DCAResponse{Beta: lookup, Result: res}
	run := results.FromResult(results.KindDCA, res)
	if err := h.runs.Save(ctx, run); err != nil {
		// The result is still useful without an id
		h.log.Error().Err(err).Str("symbol", req.Symbol).Msg("Failed to store run")
	} else {
		resp.RunID = run.ID
	}
	if !req.IncludeLog {
		res.Log = ""
	}

	return resp, nil
}

// BatchResponse is the body of a parameter sweep
type BatchResponse struct {
	BatchID   string        `json:"batchId"`
	BestRunID string        `json:"bestRunId,omitempty"`
	Beta      beta.Lookup   `json:"beta"`
	Report    *sweep.Report `json:"report"`
}

// HandleRunBatch sweeps a parameter grid and returns the ranking
func (h *Handler) HandleRunBatch(w http.ResponseWriter, r *http.Request) {
	req := newBatchRequest()
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	resp, err := h.runBatch(r.Context(), req, nil)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) runBatch(ctx context.Context, req BatchRequest, progress sweep.ProgressFunc) (*BatchResponse, error) {
	start := time.Now()

	series, err := h.loadSeries(ctx, req.Window)
	if err != nil {
		return nil, err
	}

	base := req.Params
	lookup := h.betas.Apply(ctx, req.Symbol, &base)

	combos, err := req.Grid.Combinations(base)
	if err != nil {
		return nil, err
	}

	report, err := h.sweeps.Run(ctx, req.Symbol, series, combos, progress)
	var best *backtest.Result
	if report != nil {
		if o, ok := report.Best(); ok {
			best = o.Result()
		}
	}
	h.observer.ObserveRun(string(results.KindBatch), time.Since(start), best, err)
	if err != nil {
		return nil, err
	}
	h.observer.ObserveSweep(len(combos))

	resp := &BatchResponse{BatchID: uuid.New().String(), Beta: lookup, Report: report}
	if best != nil {
		run := results.FromResult(results.KindBatch, best)
		if err := h.runs.Save(ctx, run); err != nil {
			h.log.Error().Err(err).Str("symbol", req.Symbol).Msg("Failed to store best sweep run")
		} else {
			resp.BestRunID = run.ID
		}
	}
	if req.Top > 0 && len(report.Ranked) > req.Top {
		report.Ranked = report.Ranked[:req.Top]
	}

	h.log.Info().
		Str("batch_id", resp.BatchID).
		Str("symbol", req.Symbol).
		Int("combinations", len(combos)).
		Msg("Batch completed")

	return resp, nil
}

// PortfolioResponse is the body of a portfolio run
type PortfolioResponse struct {
	RunIDs []string          `json:"runIds,omitempty"`
	Betas  []beta.Lookup     `json:"betas"`
	Result *portfolio.Result `json:"result"`
}

// HandleRunPortfolio runs several symbols against one cash pool
func (h *Handler) HandleRunPortfolio(w http.ResponseWriter, r *http.Request) {
	req := newPortfolioRequest()
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	start := time.Now()
	resp, err := h.runPortfolio(r.Context(), req)
	var txs []backtest.Transaction
	if resp != nil {
		for _, sym := range resp.Result.Symbols {
			txs = append(txs, sym.Transactions...)
		}
	}
	h.observer.ObserveRun(string(results.KindPortfolio), time.Since(start), &backtest.Result{Transactions: txs}, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) runPortfolio(ctx context.Context, req PortfolioRequest) (*PortfolioResponse, error) {
	cfg := portfolio.Config{TotalCapital: req.TotalCapital}
	resp := &PortfolioResponse{}

	for _, hr := range req.Holdings {
		params, err := req.holdingParams(hr)
		if err != nil {
			return nil, err
		}
		series, err := h.loadSeries(ctx, Window{
			Symbol:    hr.Symbol,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			Prices:    hr.Prices,
		})
		if err != nil {
			return nil, err
		}
		resp.Betas = append(resp.Betas, h.betas.Apply(ctx, hr.Symbol, &params))
		cfg.Holdings = append(cfg.Holdings, portfolio.Holding{Symbol: hr.Symbol, Params: params, Prices: series})
	}

	res, err := h.portfolio.Run(ctx, cfg)
	if err != nil {
		return nil, err
	}
	resp.Result = res

	for _, sym := range res.Symbols {
		run := results.FromResult(results.KindPortfolio, sym)
		if err := h.runs.Save(ctx, run); err != nil {
			h.log.Error().Err(err).Str("symbol", sym.Symbol).Msg("Failed to store portfolio run")
		} else {
			resp.RunIDs = append(resp.RunIDs, run.ID)
		}
		sym.Log = ""
	}
	return resp, nil
}

// HandleListRuns lists stored runs, newest first
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.writeError(w, fmt.Errorf("%w: invalid limit %q", backtest.ErrInvalidConfig, s))
			return
		}
		limit = n
	}

	runs, err := h.runs.List(r.Context(), r.URL.Query().Get("symbol"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, runs)
}

// HandleGetRun returns one stored run with transactions and equity curve
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

func (h *Handler) loadSeries(ctx context.Context, win Window) ([]backtest.PricePoint, error) {
	if win.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", backtest.ErrInvalidConfig)
	}
	if len(win.Prices) > 0 {
		return prices.ToPoints(win.Prices)
	}
	from, to, err := win.bounds()
	if err != nil {
		return nil, err
	}
	return h.prices.GetRange(ctx, win.Symbol, from, to)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", backtest.ErrInvalidConfig, err)
	}
	return nil
}

// envelope is the body of every response
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// StatusFor maps an error to the HTTP status it is reported with
func StatusFor(err error) int {
	switch {
	case errors.Is(err, backtest.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, prices.ErrNoPrices), errors.Is(err, results.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		h.log.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: false, Error: err.Error()}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
