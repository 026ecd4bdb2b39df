package feed

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"

	"github.com/MrWong99/voxline/internal/observe"
)

// Handler accepts feed events pushed by a chat backend:
//
//   - POST /feed: newline-delimited events in the request body. The response
//     is a JSON [Stats] for that request.
//   - GET /feed/ws: websocket; each text message holds one or more events.
type Handler struct {
	pump           *Pump
	originPatterns []string
}

// HandlerOption configures a [Handler].
type HandlerOption func(*Handler)

// WithOriginPatterns allows cross-origin websocket clients whose Origin host
// matches one of patterns.
func WithOriginPatterns(patterns ...string) HandlerOption {
	return func(h *Handler) { h.originPatterns = patterns }
}

// NewHandler returns a [Handler] feeding pump.
func NewHandler(pump *Pump, opts ...HandlerOption) *Handler {
	h := &Handler{pump: pump}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register adds the feed routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /feed", h.Post)
	mux.HandleFunc("GET /feed/ws", h.WebSocket)
}

// Post ingests the request body.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	var st Stats
	if err := scanLines(r.Context(), r.Body, h.counting(r.Context(), &st)); err != nil {
		observe.Logger(r.Context()).Warn("feed: ingest request", "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(st)
}

// WebSocket upgrades the connection and ingests messages until the client
// closes it or sends a final event.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		observe.Logger(r.Context()).Warn("feed: websocket accept", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxMessageBytes)

	ctx := r.Context()
	var st Stats
	if err := readMessages(ctx, conn, h.counting(ctx, &st)); err != nil {
		observe.Logger(ctx).Warn("feed: websocket ingest", "err", err, "events", st.Events)
		conn.Close(websocket.StatusInternalError, "read failed")
		return
	}
	observe.Logger(ctx).Info("feed: websocket ingest complete",
		"events", st.Events,
		"segments", st.Segments,
		"rejected", st.Rejected,
	)
	conn.Close(websocket.StatusNormalClosure, "")
}

// counting returns an emit function that forwards to the pump and tallies
// the outcome into st.
func (h *Handler) counting(ctx context.Context, st *Stats) func(Event) error {
	return func(ev Event) error {
		st.Events++
		if err := h.pump.Handle(ctx, ev); err != nil {
			st.Rejected++
			return nil
		}
		if ev.Type == TypeAudio {
			st.Segments++
		}
		return nil
	}
}
