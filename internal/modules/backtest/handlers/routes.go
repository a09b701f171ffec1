package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all backtest routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/backtest", func(r chi.Router) {
		r.Post("/dca", h.HandleRunDCA)              // Single symbol
		r.Post("/batch", h.HandleRunBatch)          // Parameter sweep
		r.Get("/batch/stream", h.HandleBatchStream) // Parameter sweep over websocket
		r.Post("/portfolio", h.HandleRunPortfolio)  // Shared cash pool

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.HandleListRuns)
			r.Get("/{id}", h.HandleGetRun)
		})
	})
}
