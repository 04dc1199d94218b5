// ABOUTME: WebSocket bridge that streams broadcaster events to the UI
// ABOUTME: One subscription per connection, JSON text frames, periodic pings

package events

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second

	// DefaultPingInterval keeps idle connections alive through proxies.
	DefaultPingInterval = 30 * time.Second

	// CloseResync tells the client it fell behind and must reload state.
	CloseResync = 4000
)

// Handler upgrades HTTP requests to WebSocket connections and forwards
// every event from the broadcaster as a JSON text frame. Clients may
// restrict the stream with ?kinds=workspace,http_request.
type Handler struct {
	broadcaster  *Broadcaster
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	logger       *slog.Logger
}

// NewHandler creates a WebSocket handler. Pass zero pingInterval for the default.
func NewHandler(b *Broadcaster, pingInterval time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	return &Handler{
		broadcaster: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		pingInterval: pingInterval,
		logger:       logger.With("component", "events-ws"),
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, subID := h.broadcaster.Subscribe(ctx, parseKinds(r.URL.Query().Get("kinds"))...)
	logger := h.logger.With("sub_id", subID, "remote", r.RemoteAddr)
	logger.Info("websocket client connected")
	defer logger.Info("websocket client disconnected")

	// The read loop only drains control frames and notices the client leaving.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				h.closeWith(conn, CloseResync, "resync")
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}

func (h *Handler) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		h.logger.Debug("failed to write close message", "error", err)
	}
}

func parseKinds(raw string) []string {
	if raw == "" {
		return nil
	}
	var kinds []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
