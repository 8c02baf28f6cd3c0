package handlers

import (
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Record event types pushed over the events socket
const (
	EventCreated   = "created"
	EventUpdated   = "updated"
	EventDeleted   = "deleted"
	EventAnalysis  = "analysis"
	EventPreserved = "preserved"
)

// RecordEvent tells subscribers of a scope that one of that scope's evidence
// records changed and which record it was. Clients re-fetch the record rather
// than receiving the full document over the socket.
type RecordEvent struct {
	Type       string `json:"type"`
	EvidenceID string `json:"evidenceId"`
	Scope      string `json:"scope"`
}

// Hub fans record events out to websocket subscribers, grouped by owner
// scope. Events for one scope are never delivered to another scope's
// subscribers.
type Hub struct {
	mu     sync.Mutex
	scopes map[string]map[*websocket.Conn]bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		scopes: make(map[string]map[*websocket.Conn]bool),
	}
}

// Subscribe registers a connection under the given scope
func (h *Hub) Subscribe(scope string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.scopes[scope] == nil {
		h.scopes[scope] = make(map[*websocket.Conn]bool)
	}
	h.scopes[scope][conn] = true
}

// Unsubscribe removes a connection from the given scope
func (h *Hub) Unsubscribe(scope string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.scopes[scope], conn)
	if len(h.scopes[scope]) == 0 {
		delete(h.scopes, scope)
	}
}

// Publish delivers an event to every subscriber of its scope. Connections
// that fail to write are dropped.
func (h *Hub) Publish(eventType, evidenceID, scope string) {
	event := RecordEvent{Type: eventType, EvidenceID: evidenceID, Scope: scope}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.scopes[scope] {
		if err := conn.WriteJSON(event); err != nil {
			zap.S().Debugw("dropping events subscriber", "scope", scope, "error", err)
			conn.Close()
			delete(h.scopes[scope], conn)
		}
	}
	if len(h.scopes[scope]) == 0 {
		delete(h.scopes, scope)
	}
}

// SubscriberCount reports how many connections are subscribed to a scope
func (h *Hub) SubscriberCount(scope string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.scopes[scope])
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the dashboard is served from a different origin than the api
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Events exported for testing purposes
type Events struct {
	Hub *Hub
}

// EventsHandler upgrades the request to a websocket and streams record
// events for the requested scope until the client disconnects
func (e Events) EventsHandler(w http.ResponseWriter, r *http.Request) {
	scope := mux.Vars(r)["scope"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("failed to upgrade events connection", "scope", scope, "error", err)
		return
	}

	e.Hub.Subscribe(scope, conn)
	zap.S().Debugw("events subscriber connected", "scope", scope)

	// the server never reads application data, the read loop only exists to
	// notice the close
	go func() {
		defer func() {
			e.Hub.Unsubscribe(scope, conn)
			conn.Close()
			zap.S().Debugw("events subscriber disconnected", "scope", scope)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
