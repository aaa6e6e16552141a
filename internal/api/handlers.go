package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"carscout/internal/trigger"
)

type handlers struct {
	deps Deps
}

type healthResponse struct {
	Status   string `json:"status"`
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`
}

type statsResponse struct {
	Source         string `json:"source"`
	ActiveListings int64  `json:"active_listings"`
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Postgres: "ok", Redis: "ok"}
	code := http.StatusOK

	if err := h.deps.Pool.Ping(ctx); err != nil {
		resp.Status, resp.Postgres = "degraded", err.Error()
		code = http.StatusServiceUnavailable
	}
	if err := h.deps.Redis.Ping(ctx).Err(); err != nil {
		resp.Status, resp.Redis = "degraded", err.Error()
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (h *handlers) handleStats(w http.ResponseWriter, r *http.Request) {
	active, err := h.deps.Listings.CountActive(r.Context(), h.deps.Source)
	if err != nil {
		h.deps.Logger.Error("stats query failed", zap.Error(err))
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Source:         h.deps.Source,
		ActiveListings: active,
	})
}

func (h *handlers) handleScrape(w http.ResponseWriter, r *http.Request) {
	if err := trigger.Enqueue(r.Context(), h.deps.Redis); err != nil {
		h.deps.Logger.Error("failed to enqueue scrape request", zap.Error(err))
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": "scrape cycle queued",
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"status": "error", "message": message})
}
