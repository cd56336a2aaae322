package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gantrylabs/gantry/internal/engine"
)

const (
	wsWriteTimeout = 5 * time.Second

	// wsBuffer bounds the snapshot queue per client. A slow client skips
	// intermediate snapshots rather than stalling the engine; the final
	// state always arrives because the queue drains faster than terminal
	// snapshots are produced.
	wsBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is enforced by the router middleware; the handshake's Origin
	// check would reject same-machine dev UIs on other ports.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebsocket streams state snapshots to one client: the current state
// on connect, then every subsequent snapshot until the client goes away.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	snapshots := make(chan engine.State, wsBuffer)
	snapshots <- s.exec.State()

	unsubscribe := s.exec.Subscribe(func(state engine.State) {
		select {
		case snapshots <- state:
		default:
			// Queue full; drop this snapshot. The client catches up on
			// the next one.
		}
	})

	// Reader goroutine: the client sends nothing meaningful, but reading
	// surfaces disconnects and answers control frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		unsubscribe()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case state := <-snapshots:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(state); err != nil {
				return
			}
		}
	}
}
