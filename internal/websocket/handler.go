package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// KeyFunc returns the session key of a request, or "" to reject it.
type KeyFunc func(r *http.Request) string

// HandleWebSocket upgrades authenticated requests and runs them as hub
// clients of their session.
func HandleWebSocket(hub *Hub, keyOf KeyFunc, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := keyOf(r)
		if key == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, key)
		client.Run(r.Context())
	}
}
