package api

import (
	"context"
	"net/http"

	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/workflow"
)

func (h *Handler) createWorkflow(w http.ResponseWriter, r *http.Request) {
	var req WorkflowBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.Input()
	if err != nil {
		writeErr(w, err)
		return
	}

	wf, err := h.beacon.CreateWorkflow(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, wf)
}

func (h *Handler) listWorkflows(w http.ResponseWriter, r *http.Request) {
	opts := workflow.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
		Status: workflow.Status(queryParam(r, "status")),
	}

	wfs, err := h.beacon.Workflows().List(r.Context(), opts)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wfs)
}

func (h *Handler) getWorkflow(w http.ResponseWriter, r *http.Request) {
	wfID, err := id.ParseWorkflowID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid workflow ID")
		return
	}

	wf, err := h.beacon.Workflows().Get(r.Context(), wfID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wf)
}

func (h *Handler) updateWorkflow(w http.ResponseWriter, r *http.Request) {
	wfID, err := id.ParseWorkflowID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid workflow ID")
		return
	}

	var req WorkflowBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.Input()
	if err != nil {
		writeErr(w, err)
		return
	}

	wf, err := h.beacon.Workflows().Update(r.Context(), wfID, in)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wf)
}

func (h *Handler) startWorkflow(w http.ResponseWriter, r *http.Request) {
	h.transitionWorkflow(w, r, h.beacon.StartWorkflow)
}

func (h *Handler) pauseWorkflow(w http.ResponseWriter, r *http.Request) {
	h.transitionWorkflow(w, r, h.beacon.PauseWorkflow)
}

func (h *Handler) completeWorkflow(w http.ResponseWriter, r *http.Request) {
	h.transitionWorkflow(w, r, h.beacon.CompleteWorkflow)
}

func (h *Handler) transitionWorkflow(
	w http.ResponseWriter,
	r *http.Request,
	fn func(context.Context, id.ID) (*workflow.Workflow, error),
) {
	wfID, err := id.ParseWorkflowID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid workflow ID")
		return
	}

	wf, err := fn(r.Context(), wfID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wf)
}

func (h *Handler) triggerWorkflow(w http.ResponseWriter, r *http.Request) {
	wfID, err := id.ParseWorkflowID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid workflow ID")
		return
	}

	var req TriggerRunBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	subjID, err := id.ParseSubjectID(req.SubjectID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subject ID")
		return
	}

	res, err := h.beacon.TriggerWorkflow(r.Context(), wfID, subjID, req.Variables)
	if err != nil {
		writeErr(w, err)
		return
	}

	status := http.StatusAccepted
	if !res.Matched {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}
