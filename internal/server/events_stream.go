package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/forecastbench/forecastbench/internal/events"
)

// EventsStreamHandler streams job lifecycle events to websocket clients.
// Each connection gets its own bus subscription; a slow client only
// drops its own events.
type EventsStreamHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewEventsStreamHandler creates the websocket event stream handler.
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus: bus,
		log: log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream, upgrading to a websocket.
// The optional "types" query parameter is a comma-separated event type
// filter.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var allowed map[events.EventType]bool
	if typesFilter := r.URL.Query().Get("types"); typesFilter != "" {
		allowed = make(map[events.EventType]bool)
		for _, t := range strings.Split(typesFilter, ",") {
			allowed[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Ops dashboard may be served from another origin
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ch, cancel := h.bus.Subscribe()
	defer cancel()

	h.log.Info().Msg("Client connected to event stream")

	ctx := r.Context()
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case ev, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "bus closed")
				return
			}
			if allowed != nil && !allowed[ev.Type] {
				continue
			}
			if err := h.writeEvent(ctx, conn, ev); err != nil {
				h.log.Debug().Err(err).Msg("Event write failed; dropping client")
				return
			}

		case <-heartbeat.C:
			if err := conn.Ping(ctx); err != nil {
				h.log.Debug().Err(err).Msg("Heartbeat failed; dropping client")
				return
			}
		}
	}
}

func (h *EventsStreamHandler) writeEvent(ctx context.Context, conn *websocket.Conn, ev events.Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(writeCtx, conn, ev)
}
