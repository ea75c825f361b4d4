package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ctxKey struct{}

const requestIDHeader = "X-Request-ID"

func Router(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/availability", h.OrderHandler.CheckAvailability)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.OrderHandler.CreateOrder)
		r.Get("/{order_id}", h.OrderHandler.GetOrder)
		r.Get("/{order_id}/timeline", h.OrderHandler.GetTimeline)
		r.Post("/{order_id}/items", h.OrderHandler.AddItem)
		r.Post("/{order_id}/reorder", h.OrderHandler.Reorder)
		r.Patch("/{order_id}/status", h.OrderHandler.UpdateStatus)
		r.Post("/{order_id}/bonuses", h.OrderHandler.ApplyBonuses)
	})
	r.Delete("/order-items/{item_id}", h.OrderHandler.RemoveItem)
	return r
}

// requestID propagates X-Request-ID, minting one when the caller sent none.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
