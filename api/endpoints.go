package api

import (
	"net/http"

	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/endpoint"
	"github.com/xraph/beacon/id"
)

func (h *Handler) createEndpoint(w http.ResponseWriter, r *http.Request) {
	var req EndpointBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.Input()
	if err != nil {
		writeErr(w, err)
		return
	}

	ep, err := h.beacon.RegisterEndpoint(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ep)
}

func (h *Handler) listEndpoints(w http.ResponseWriter, r *http.Request) {
	opts := endpoint.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
		Active: queryBool(r, "active"),
	}

	eps, err := h.beacon.Endpoints().List(r.Context(), opts)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, eps)
}

func (h *Handler) getEndpoint(w http.ResponseWriter, r *http.Request) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	ep, err := h.beacon.Endpoints().Get(r.Context(), epID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ep)
}

func (h *Handler) updateEndpoint(w http.ResponseWriter, r *http.Request) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	var req EndpointPatchBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	up, err := req.Update()
	if err != nil {
		writeErr(w, err)
		return
	}

	ep, err := h.beacon.UpdateEndpoint(r.Context(), epID, up)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ep)
}

func (h *Handler) deleteEndpoint(w http.ResponseWriter, r *http.Request) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	if err := h.beacon.DeleteEndpoint(r.Context(), epID); err != nil {
		writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enableEndpoint(w http.ResponseWriter, r *http.Request) {
	h.setEndpointActive(w, r, true)
}

func (h *Handler) disableEndpoint(w http.ResponseWriter, r *http.Request) {
	h.setEndpointActive(w, r, false)
}

func (h *Handler) setEndpointActive(w http.ResponseWriter, r *http.Request, active bool) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	if active {
		err = h.beacon.ActivateEndpoint(r.Context(), epID)
	} else {
		err = h.beacon.DeactivateEndpoint(r.Context(), epID)
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rotateSecret(w http.ResponseWriter, r *http.Request) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	secret, err := h.beacon.RotateSecret(r.Context(), epID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SecretResponse{Secret: secret})
}

func (h *Handler) listEndpointDeliveries(w http.ResponseWriter, r *http.Request) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
		return
	}

	opts := delivery.ListOpts{
		Offset:     queryInt(r, "offset", 0),
		Limit:      queryInt(r, "limit", 50),
		EndpointID: epID,
		State:      delivery.State(queryParam(r, "state")),
	}

	ds, err := h.store.ListDeliveries(r.Context(), opts)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ds)
}
