package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GET /sessions/{sessionID}/lists
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// POST /sessions/{sessionID}/playback
func (h *Handler) RecordPlayback(w http.ResponseWriter, r *http.Request) {
	e, ok := decodeEntry(w, r)
	if !ok {
		return
	}
	snap, err := h.service.RecordPlayback(r.Context(), chi.URLParam(r, "sessionID"), e)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
