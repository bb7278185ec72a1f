// Package api exposes the node's HTTP and WebSocket surface.
package api

import (
	"sync"

	"github.com/gofiber/contrib/websocket"

	customlog "github.com/open-rover/simnode/pkg/log"
)

// TelemetryHub fans each tick's telemetry document out to the connected
// WebSocket clients. A client that fails a write is dropped.
type TelemetryHub struct {
	logger customlog.Logger
	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
}

// NewTelemetryHub creates an empty hub.
func NewTelemetryHub(logger customlog.Logger) *TelemetryHub {
	return &TelemetryHub{
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

func (h *TelemetryHub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	count := len(h.conns)
	h.mu.Unlock()
	h.logger.Infof("Telemetry client connected: %s (%d active)", conn.RemoteAddr(), count)
}

func (h *TelemetryHub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	count := len(h.conns)
	h.mu.Unlock()
	h.logger.Infof("Telemetry client disconnected: %s (%d active)", conn.RemoteAddr(), count)
}

// Broadcast sends the payload to every connected client.
func (h *TelemetryHub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debugf("Dropping telemetry client %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *TelemetryHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
