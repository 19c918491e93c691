package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/presence.report/internal/monitoring"
)

const wsPushInterval = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from the same host but may sit behind a
	// reverse proxy, so origin checking is left to the deployment.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket streams the device table to the client once per
// second until the client disconnects. Each frame is the same payload
// /api/devices serves, so the dashboard can treat both uniformly.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		monitoring.Logf("ws: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Drain client frames so close and ping control messages are
	// processed; the stream is one-directional.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := s.clock.NewTicker(wsPushInterval)
	defer ticker.Stop()

	if err := conn.WriteJSON(s.devicesPayload(s.units)); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ticker.C():
			// The deadline must come from the wall clock: net.Conn
			// compares it against real time, not the injected clock.
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(s.devicesPayload(s.units)); err != nil {
				return
			}
		}
	}
}
