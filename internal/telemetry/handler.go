package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Handler serves the aggregated telemetry over HTTP.
type Handler struct {
	aggregator *Aggregator
	store      SnapshotStore
	logger     *slog.Logger
}

// SnapshotStore lists persisted snapshots. It may be nil.
type SnapshotStore interface {
	ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
}

func NewHandler(aggregator *Aggregator, store SnapshotStore) *Handler {
	return &Handler{
		aggregator: aggregator,
		store:      store,
		logger:     slog.Default().With("component", "telemetry-handler"),
	}
}

// Routes mounts the telemetry endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/v1/telemetry", h.Stats)
	r.Get("/api/v1/telemetry/families/{family}", h.Family)
	r.Get("/api/v1/telemetry/snapshots", h.Snapshots)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

// Family returns the bucket of one content family.
func (h *Handler) Family(w http.ResponseWriter, r *http.Request) {
	family := chi.URLParam(r, "family")
	for _, b := range h.aggregator.Stats().ByFamily {
		if b.Key == family {
			h.writeJSON(w, http.StatusOK, b)
			return
		}
	}
	h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no telemetry for family " + family})
}

// Snapshots lists persisted snapshots, newest first.
func (h *Handler) Snapshots(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "snapshot store not configured"})
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}
	snaps, err := h.store.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list snapshots", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing snapshots failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, snaps)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write telemetry response", "error", err)
	}
}
