package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/actuallystonmai/streamfront/internal/domain"
	"github.com/actuallystonmai/streamfront/internal/presence"
)

const writeTimeout = 5 * time.Second

var contentIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

func (h *Handler) contentID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !h.features.PresenceEnabled || h.broker == nil {
		writeError(w, http.StatusNotFound, "presence_disabled", "Viewer counts are disabled")
		return "", false
	}
	id := chi.URLParam(r, "contentID")
	if !contentIDPattern.MatchString(id) {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid content id")
		return "", false
	}
	return id, true
}

// GET /viewers/{contentID}/count
func (h *Handler) GetViewerCount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.contentID(w, r)
	if !ok {
		return
	}
	members, err := h.broker.Members(r.Context(), presence.Topic(id))
	if err != nil {
		log.Printf("[presence] members of %s: %v", id, err)
		members = presence.State{}
	}
	writeJSON(w, http.StatusOK, domain.ViewerCount{ContentID: id, Count: presence.CountOf(members)})
}

// GET /viewers/{contentID} (WebSocket)
//
// The socket is the viewer's membership: the session joins when the socket
// opens and leaves when it closes. Every count change is pushed as a frame.
func (h *Handler) WatchViewers(w http.ResponseWriter, r *http.Request) {
	id, ok := h.contentID(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: len(h.originPatterns) == 0,
	})
	if err != nil {
		log.Printf("[presence] websocket accept: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	counter := presence.Watch(ctx, h.broker, id)
	defer counter.Close()

	if err := writeCount(ctx, conn, id, counter.Count()); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case n, ok := <-counter.Updates():
			if !ok {
				return
			}
			if err := writeCount(ctx, conn, id, n); err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Printf("[presence] write to viewer of %s: %v", id, err)
				}
				return
			}
		}
	}
}

func writeCount(ctx context.Context, conn *websocket.Conn, id string, n int) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, domain.ViewerCount{ContentID: id, Count: n})
}
