package api

import (
	"net/http"

	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/run"
)

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	opts := run.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
		Status: run.Status(queryParam(r, "status")),
	}
	if v := queryParam(r, "workflow_id"); v != "" {
		wfID, err := id.ParseWorkflowID(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid workflow ID")
			return
		}
		opts.WorkflowID = wfID
	}
	if v := queryParam(r, "subject_id"); v != "" {
		subjID, err := id.ParseSubjectID(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid subject ID")
			return
		}
		opts.SubjectID = subjID
	}

	runs, err := h.store.ListRuns(r.Context(), opts)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	runID, err := id.ParseRunID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run ID")
		return
	}

	rn, err := h.store.GetRun(r.Context(), runID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rn)
}

func (h *Handler) listStepLogs(w http.ResponseWriter, r *http.Request) {
	runID, err := id.ParseRunID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run ID")
		return
	}

	if _, err := h.store.GetRun(r.Context(), runID); err != nil {
		writeErr(w, err)
		return
	}
	logs, err := h.store.ListStepLogs(r.Context(), runID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, logs)
}

func (h *Handler) cancelRun(w http.ResponseWriter, r *http.Request) {
	runID, err := id.ParseRunID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run ID")
		return
	}

	rn, err := h.beacon.CancelRun(r.Context(), runID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rn)
}
