package ws

import (
	"net/http"
	"slices"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// ServeWS returns an HTTP handler that upgrades to WebSocket. Connections
// are anonymous; identity is assigned on join-room.
func ServeWS(hub *Hub, allowedOrigins []string) http.HandlerFunc {
	opts := &websocket.AcceptOptions{
		OriginPatterns:     allowedOrigins,
		InsecureSkipVerify: slices.Contains(allowedOrigins, "*"),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			hub.log.Warn("accept error", zap.Error(err))
			return
		}

		client := NewClient(hub, conn)
		hub.register(client)

		go client.WritePump()
		// The request context stays valid while the handler blocks here.
		client.ReadPump(r.Context())
	}
}
