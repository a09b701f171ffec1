// Package handlers provides HTTP handlers for stored price series and betas.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/beta"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/prices"
	"github.com/rs/zerolog"
)

// maxUploadBytes bounds price uploads
const maxUploadBytes = 32 << 20

// Store provides access to stored daily prices
type Store interface {
	Upsert(ctx context.Context, symbol string, points []backtest.PricePoint) (int, error)
	GetRange(ctx context.Context, symbol string, from, to time.Time) ([]backtest.PricePoint, error)
	Symbols(ctx context.Context) ([]string, error)
	DeleteSymbol(ctx context.Context, symbol string) (int64, error)
}

// BetaLookup resolves a symbol's beta
type BetaLookup interface {
	Get(ctx context.Context, symbol string) beta.Lookup
}

// Handler handles price and beta HTTP requests
type Handler struct {
	store Store
	betas BetaLookup
	log   zerolog.Logger
}

// NewHandler creates a new price handler
func NewHandler(store Store, betas BetaLookup, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		betas: betas,
		log:   log.With().Str("handler", "prices").Logger(),
	}
}

// HandleListSymbols returns every symbol with stored prices
func (h *Handler) HandleListSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.store.Symbols(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	h.writeJSON(w, http.StatusOK, symbols)
}

// HandleGetPrices returns a symbol's stored series, optionally bounded by
// startDate and endDate query parameters
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	from, to, err := prices.ParseWindow(r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	points, err := h.store.GetRange(r.Context(), symbol, from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, prices.FromPoints(points))
}

// HandleUploadPrices stores a series for a symbol. The body is either a JSON
// array of price points or, with Content-Type text/csv, a CSV file.
func (h *Handler) HandleUploadPrices(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var points []backtest.PricePoint
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/csv") {
		points, err = prices.LoadCSV(body)
		if err != nil {
			err = fmt.Errorf("%w: %v", backtest.ErrInvalidConfig, err)
		}
	} else {
		var dtos []prices.PricePointDTO
		if derr := json.NewDecoder(body).Decode(&dtos); derr != nil {
			err = fmt.Errorf("%w: invalid request body: %v", backtest.ErrInvalidConfig, derr)
		} else {
			points, err = prices.ToPoints(dtos)
		}
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(points) == 0 {
		h.writeError(w, fmt.Errorf("%w: no price points in upload", backtest.ErrInvalidConfig))
		return
	}

	n, err := h.store.Upsert(r.Context(), symbol, points)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Info().Str("symbol", symbol).Int("points", n).Msg("Stored uploaded prices")
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":    symbol,
		"stored":    n,
		"startDate": points[0].Date.Format("2006-01-02"),
		"endDate":   points[len(points)-1].Date.Format("2006-01-02"),
	})
}

// HandleDeletePrices removes a symbol's stored series
func (h *Handler) HandleDeletePrices(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	n, err := h.store.DeleteSymbol(r.Context(), symbol)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"symbol": symbol, "deleted": n})
}

// HandleGetBeta returns the beta the engine would use for a symbol
func (h *Handler) HandleGetBeta(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.betas.Get(r.Context(), chi.URLParam(r, "symbol")))
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, backtest.ErrInvalidConfig):
		status = http.StatusBadRequest
	case errors.Is(err, prices.ErrNoPrices):
		status = http.StatusNotFound
	default:
		h.log.Error().Err(err).Msg("Request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: false, Error: err.Error()}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
