package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/starford/tessera/internal/sse"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// LiveHandler streams broker events for one canvas over a websocket.
type LiveHandler struct {
	broker *sse.Broker
}

// NewLiveHandler creates a websocket handler backed by broker.
func NewLiveHandler(broker *sse.Broker) *LiveHandler {
	return &LiveHandler{broker: broker}
}

// ServeHTTP handles GET /api/canvases/{canvasID}/live. Each broker event is
// sent as one JSON text frame.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := canvasID(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("live: upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ch := h.broker.Subscribe(id)
	defer h.broker.Unsubscribe(ch)

	// The read pump only services control frames and notices disconnects.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
