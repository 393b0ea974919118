package remote

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketGateway exposes the same command surface as Server, but over a
// local websocket listener, for browser-based dev tooling that cannot
// open a raw USB/serial connection. Framing still follows ReadRequest/
// WriteResponse; each websocket binary message carries exactly one frame.
type WebSocketGateway struct {
	server   *Server
	upgrader websocket.Upgrader
	pingEvery time.Duration
}

// NewWebSocketGateway wraps h behind a websocket listener.
func NewWebSocketGateway(h Handler) *WebSocketGateway {
	return &WebSocketGateway{
		server:    NewServer(h),
		upgrader:  websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		pingEvery: 30 * time.Second,
	}
}

// ServeHTTP upgrades the connection and bridges frames until the peer
// disconnects.
func (g *WebSocketGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("remote: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go g.pingLoop(conn, done)
	defer close(done)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage || len(data) < 3 {
			continue
		}
		status, respData := g.server.dispatch(data[0], data[3:])
		frame := append([]byte{status, byte(len(respData)), byte(len(respData) >> 8)}, respData...)
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return
		}
	}
}

func (g *WebSocketGateway) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(g.pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
