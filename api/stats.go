package api

import (
	"context"
	"net/http"

	"github.com/xraph/beacon/store"
)

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := collectStats(r.Context(), h.store)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func collectStats(ctx context.Context, s store.Store) (*StatsResponse, error) {
	counts, err := s.CountDeliveriesByState(ctx)
	if err != nil {
		return nil, err
	}

	out := &StatsResponse{Deliveries: make(map[string]int64, len(counts))}
	for state, n := range counts {
		out.Deliveries[string(state)] = n
	}
	return out, nil
}
