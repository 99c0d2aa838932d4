package api

import (
	"net/http"

	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/event"
	"github.com/xraph/beacon/id"
)

func (h *Handler) triggerEvent(w http.ResponseWriter, r *http.Request) {
	var req delivery.TriggerInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.beacon.TriggerEvent(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	opts := event.ListOpts{
		Offset:    queryInt(r, "offset", 0),
		Limit:     queryInt(r, "limit", 50),
		Type:      queryParam(r, "type"),
		Processed: queryBool(r, "processed"),
	}

	events, err := h.store.ListEvents(r.Context(), opts)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	evtID, err := id.ParseEventID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}

	evt, err := h.store.GetEvent(r.Context(), evtID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, evt)
}

// ──────────────────────────────────────────────────
// Deliveries
// ──────────────────────────────────────────────────

func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	opts := delivery.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
		State:  delivery.State(queryParam(r, "state")),
	}
	if v := queryParam(r, "event_id"); v != "" {
		evtID, err := id.ParseEventID(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid event ID")
			return
		}
		opts.EventID = evtID
	}

	ds, err := h.store.ListDeliveries(r.Context(), opts)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ds)
}

func (h *Handler) getDelivery(w http.ResponseWriter, r *http.Request) {
	delID, err := id.ParseDeliveryID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delivery ID")
		return
	}

	d, err := h.store.GetDelivery(r.Context(), delID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) listAttempts(w http.ResponseWriter, r *http.Request) {
	delID, err := id.ParseDeliveryID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delivery ID")
		return
	}

	if _, err := h.store.GetDelivery(r.Context(), delID); err != nil {
		writeErr(w, err)
		return
	}
	attempts, err := h.store.ListAttempts(r.Context(), delID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, attempts)
}

func (h *Handler) redeliver(w http.ResponseWriter, r *http.Request) {
	delID, err := id.ParseDeliveryID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delivery ID")
		return
	}

	d, err := h.beacon.Redeliver(r.Context(), delID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) processRetries(w http.ResponseWriter, r *http.Request) {
	n, err := h.beacon.ProcessRetries(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RetriesResponse{Attempted: n})
}
