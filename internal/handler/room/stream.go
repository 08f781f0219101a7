package room

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	roomService "github.com/nsong/lingotalk/internal/service/room"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleStream upgrades the request and streams every message appended to
// the room until the client disconnects.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	room, ok := h.store.Find(chi.URLParam(r, "code"))
	if !ok {
		http.Error(w, roomService.ErrRoomNotFound.Error(), http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := h.hub.Subscribe(room.Code)
	h.log.Info("stream opened",
		zap.String("room", room.Code),
		zap.String("uid", r.URL.Query().Get("uid")),
		zap.String("nickname", r.URL.Query().Get("nickname")))

	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, sub, done)

	h.hub.Unsubscribe(room.Code, sub)
	conn.Close()
	h.log.Info("stream closed", zap.String("room", room.Code))
}

// readPump drains inbound frames so pong handling works and close frames
// are noticed. Clients send messages over REST, not the socket.
func (h *Handler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards broadcast payloads to the client and keeps the
// connection alive with periodic pings.
func (h *Handler) writePump(conn *websocket.Conn, sub *roomService.Subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-sub.C:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(payload); err != nil {
				h.log.Debug("stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
