package operatorhttp

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/99souls/atrwac/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Operator API is bearer-token gated upstream of the upgrade; any origin
	// that already holds a valid token may stream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// eventHub fans every engine.TelemetryEvent out to connected websocket
// clients. One hub per Server; registered once against the engine's
// observer list for the Server's lifetime.
type eventHub struct {
	mu      sync.Mutex
	clients map[chan engine.TelemetryEvent]struct{}
}

func newEventHub(e *engine.Engine) *eventHub {
	h := &eventHub{clients: make(map[chan engine.TelemetryEvent]struct{})}
	e.RegisterEventObserver(h.broadcast)
	return h
}

func (h *eventHub) broadcast(ev engine.TelemetryEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			// slow consumer; drop rather than block the dispatching tick.
		}
	}
}

func (h *eventHub) register() chan engine.TelemetryEvent {
	ch := make(chan engine.TelemetryEvent, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *eventHub) unregister(ch chan engine.TelemetryEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := s.hub.register()
	defer s.hub.unregister(ch)

	for ev := range ch {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
