package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mizuna-io/mizuna/internal/remote/watch"
	"github.com/mizuna-io/mizuna/pkg/log"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// watch upgrades to a websocket and streams hub events as JSON text frames
// until the peer goes away or the hub drops the subscriber.
func (h *handler) watch(w http.ResponseWriter, r *http.Request) {
	hub := h.remote.Watch()
	if hub == nil {
		writeError(w, http.StatusNotFound, "watch is disabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("Websocket upgrade failed", "error", err.Error())
		return
	}

	sub := hub.Subscribe()
	log.Debug("Watch client connected", "remote", r.RemoteAddr, "subscribers", hub.Count())

	go writePump(conn, sub)
	readPump(conn)
	sub.Close()
}

// readPump discards client frames. It keeps pong handling alive and returns
// once the connection fails.
func readPump(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on conn.
func writePump(conn *websocket.Conn, sub *watch.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
