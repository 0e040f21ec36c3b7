package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/actuallystonmai/streamfront/internal/domain"
)

const maxEntryBody = 1 << 16

type listParams struct {
	sessionID string
	kind      domain.ListKind
}

func parseListParams(w http.ResponseWriter, r *http.Request) (listParams, bool) {
	kind, err := domain.ParseListKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeServiceError(w, err)
		return listParams{}, false
	}
	return listParams{sessionID: chi.URLParam(r, "sessionID"), kind: kind}, true
}

func parseKey(w http.ResponseWriter, r *http.Request) (int64, domain.ContentType, bool) {
	typ, err := domain.ParseContentType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid type parameter")
		return 0, "", false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid id parameter")
		return 0, "", false
	}
	return id, typ, true
}

func decodeEntry(w http.ResponseWriter, r *http.Request) (domain.Entry, bool) {
	var e domain.Entry
	if err := json.NewDecoder(io.LimitReader(r.Body, maxEntryBody)).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be a JSON entry")
		return e, false
	}
	return e, true
}

func writeList(w http.ResponseWriter, p listParams, entries []domain.Entry) {
	writeJSON(w, http.StatusOK, ListResponse{
		SessionID:  p.sessionID,
		Kind:       p.kind,
		Entries:    entries,
		TotalCount: len(entries),
	})
}

// POST /sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, h.service.NewSession())
}

// GET /sessions/{sessionID}/lists/{kind}
func (h *Handler) GetList(w http.ResponseWriter, r *http.Request) {
	p, ok := parseListParams(w, r)
	if !ok {
		return
	}
	entries, err := h.service.List(r.Context(), p.sessionID, p.kind)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, p, entries)
}

// PUT /sessions/{sessionID}/lists/{kind}
func (h *Handler) UpsertEntry(w http.ResponseWriter, r *http.Request) {
	p, ok := parseListParams(w, r)
	if !ok {
		return
	}
	e, ok := decodeEntry(w, r)
	if !ok {
		return
	}
	entries, err := h.service.Upsert(r.Context(), p.sessionID, p.kind, e)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, p, entries)
}

// DELETE /sessions/{sessionID}/lists/{kind}
func (h *Handler) ClearList(w http.ResponseWriter, r *http.Request) {
	p, ok := parseListParams(w, r)
	if !ok {
		return
	}
	if err := h.service.Clear(r.Context(), p.sessionID, p.kind); err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, p, []domain.Entry{})
}

// GET /sessions/{sessionID}/lists/{kind}/{type}/{id}
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	p, ok := parseListParams(w, r)
	if !ok {
		return
	}
	id, typ, ok := parseKey(w, r)
	if !ok {
		return
	}
	e, err := h.service.Get(r.Context(), p.sessionID, p.kind, id, typ)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ContainsResponse{Contains: true, Entry: e})
}

// DELETE /sessions/{sessionID}/lists/{kind}/{type}/{id}
func (h *Handler) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	p, ok := parseListParams(w, r)
	if !ok {
		return
	}
	id, typ, ok := parseKey(w, r)
	if !ok {
		return
	}
	entries, err := h.service.Remove(r.Context(), p.sessionID, p.kind, id, typ)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, p, entries)
}
