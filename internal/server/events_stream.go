package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/beam/internal/events"
	"github.com/rs/zerolog"
)

const (
	// eventBufferSize bounds the per-client queue; later events are dropped
	eventBufferSize = 100
	heartbeatPeriod = 30 * time.Second
)

// parseTypes reads a comma-separated ?types= filter. An empty filter
// selects every event type.
func parseTypes(raw string) ([]events.EventType, error) {
	if strings.TrimSpace(raw) == "" {
		return events.AllTypes, nil
	}

	known := make(map[events.EventType]bool, len(events.AllTypes))
	for _, t := range events.AllTypes {
		known[t] = true
	}

	seen := make(map[events.EventType]bool)
	var out []events.EventType
	for _, part := range strings.Split(raw, ",") {
		t := events.EventType(strings.ToUpper(strings.TrimSpace(part)))
		if t == "" || seen[t] {
			continue
		}
		if !known[t] {
			return nil, fmt.Errorf("unknown event type: %s", t)
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

// subscription forwards bus events into a buffered channel
type subscription struct {
	events  chan *events.Event
	cancels []func()
}

func subscribe(bus *events.Bus, types []events.EventType, log zerolog.Logger) *subscription {
	s := &subscription{events: make(chan *events.Event, eventBufferSize)}
	handler := func(e *events.Event) {
		// Non-blocking send (drop if channel full)
		select {
		case s.events <- e:
		default:
			log.Warn().Str("event_type", string(e.Type)).Msg("Event channel full, dropping event")
		}
	}
	for _, t := range types {
		s.cancels = append(s.cancels, bus.Subscribe(t, handler))
	}
	return s
}

func (s *subscription) close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// eventMessage is the wire form of an event on both streams
type eventMessage struct {
	ID        string                 `json:"id,omitempty"`
	Type      string                 `json:"type"`
	Module    string                 `json:"module,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

func messageOf(e *events.Event) eventMessage {
	return eventMessage{
		ID:        e.ID,
		Type:      string(e.Type),
		Module:    e.Module,
		Timestamp: e.Timestamp.Format(time.RFC3339),
		Data:      e.Data,
	}
}

func controlMessage(kind string, at time.Time) eventMessage {
	return eventMessage{Type: kind, Timestamp: at.Format(time.RFC3339)}
}

// EventsStreamHandler streams events as Server-Sent Events
type EventsStreamHandler struct {
	bus       *events.Bus
	heartbeat time.Duration
	log       zerolog.Logger
}

// NewEventsStreamHandler creates a new SSE handler
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus:       bus,
		heartbeat: heartbeatPeriod,
		log:       log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	types, err := parseTypes(r.URL.Query().Get("types"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := subscribe(h.bus, types, h.log)
	defer sub.close()

	h.log.Info().Int("types", len(types)).Msg("Client connected to event stream")

	h.send(w, controlMessage("connected", time.Now()))
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.log.Info().Msg("Client disconnected from event stream")
			return
		case e := <-sub.events:
			h.send(w, messageOf(e))
			flusher.Flush()
		case t := <-heartbeat.C:
			h.send(w, controlMessage("heartbeat", t))
			flusher.Flush()
		}
	}
}

func (h *EventsStreamHandler) send(w http.ResponseWriter, msg eventMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
