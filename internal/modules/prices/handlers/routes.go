package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers price and beta routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/prices", func(r chi.Router) {
		r.Get("/", h.HandleListSymbols)
		r.Get("/{symbol}", h.HandleGetPrices)
		r.Post("/{symbol}", h.HandleUploadPrices) // JSON points or text/csv
		r.Delete("/{symbol}", h.HandleDeletePrices)
	})

	r.Get("/beta/{symbol}", h.HandleGetBeta)
}
