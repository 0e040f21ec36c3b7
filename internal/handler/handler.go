package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/actuallystonmai/streamfront/internal/domain"
	"github.com/actuallystonmai/streamfront/internal/presence"
	"github.com/actuallystonmai/streamfront/internal/service"
)

// Checker is a named dependency checked by the health endpoint.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

type Handler struct {
	service        *service.Service
	broker         presence.Broker
	features       domain.ClientConfig
	originPatterns []string
	checks         []Checker
}

type Options struct {
	Features domain.ClientConfig
	// OriginPatterns are passed to the WebSocket handshake; empty accepts any origin.
	OriginPatterns []string
	Checks         []Checker
}

func NewHandler(svc *service.Service, broker presence.Broker, opts Options) *Handler {
	return &Handler{
		service:        svc,
		broker:         broker,
		features:       opts.Features,
		originPatterns: opts.OriginPatterns,
		checks:         opts.Checks,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError answers with an ErrorResponse.
func writeError(w http.ResponseWriter, status int, errCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}

// writeServiceError maps domain errors to status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSession):
		writeError(w, http.StatusBadRequest, "invalid_session", "Session id must be 1-64 letters, digits, '-' or '_'")
	case errors.Is(err, domain.ErrInvalidEntry):
		writeError(w, http.StatusBadRequest, "invalid_entry", err.Error())
	case errors.Is(err, domain.ErrUnknownList):
		writeError(w, http.StatusNotFound, "unknown_list", "List does not exist")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Entry is not in the list")
	default:
		log.Printf("[handler] %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
