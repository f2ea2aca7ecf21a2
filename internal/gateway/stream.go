package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const (
	streamBuffer       = 16
	streamWriteTimeout = 5 * time.Second
)

// handleTickStream upgrades to a WebSocket and pushes every tick result as a
// JSON text frame. The latest result of each job is sent first.
func (g *Gateway) handleTickStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.stream == nil {
			http.Error(w, "tick stream not available", http.StatusServiceUnavailable)
			return
		}

		// The server's read and write timeouts would otherwise cut the
		// long-lived connection.
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Warn("tick stream accept failed", "error", err)
			return
		}
		defer func() {
			_ = conn.CloseNow()
		}()

		ticks, cancel := g.stream.Subscribe(streamBuffer)
		defer cancel()

		// Clients never send; CloseRead handles their close frames.
		ctx := conn.CloseRead(r.Context())

		if g.ticks != nil {
			for _, res := range g.ticks.Last() {
				if err := writeTick(ctx, conn, toTickJSON(res)); err != nil {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-g.done:
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			case res, ok := <-ticks:
				if !ok {
					_ = conn.Close(websocket.StatusGoingAway, "stream closed")
					return
				}
				if err := writeTick(ctx, conn, toTickJSON(res)); err != nil {
					g.logger.Debug("tick stream write failed", "error", err)
					return
				}
			}
		}
	}
}

func writeTick(ctx context.Context, conn *websocket.Conn, t tickJSON) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
