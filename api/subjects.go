package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/xraph/beacon"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/subject"
)

func (h *Handler) putSubject(w http.ResponseWriter, r *http.Request) {
	subjID, err := id.ParseSubjectID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subject ID")
		return
	}

	var req SubjectBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := storeSubject(r.Context(), h.beacon, subjID, req)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) getSubject(w http.ResponseWriter, r *http.Request) {
	subjID, err := id.ParseSubjectID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subject ID")
		return
	}

	s, err := h.store.GetSubject(r.Context(), subjID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	subjID, err := id.ParseSubjectID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subject ID")
		return
	}

	tasks, err := h.store.ListTasks(r.Context(), subjID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

// storeSubject replaces the subject under subjID, keeping its creation time.
func storeSubject(ctx context.Context, b *beacon.Beacon, subjID id.ID, body SubjectBody) (*subject.Subject, error) {
	s := &subject.Subject{
		ID:       subjID,
		Fields:   body.Fields,
		Tags:     body.Tags,
		Score:    body.Score,
		Segments: body.Segments,
	}
	existing, err := b.Store().GetSubject(ctx, subjID)
	switch {
	case err == nil:
		s.CreatedAt = existing.CreatedAt
	case !errors.Is(err, beacon.ErrSubjectNotFound):
		return nil, err
	}

	if err := b.PutSubject(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}
