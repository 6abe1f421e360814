package handlers

import (
	"context"
	"net/http"
	"time"

	"reflow_oven/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB
)

// Upgrader for HTTP -> WebSocket. Consider tightening CheckOrigin in production.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConnect streams telemetry to the client and executes the text commands it sends.
// The first frames are the connect snapshot and the session readings so far.
func (h *Handler) wsConnect(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	ctx := c.Request.Context()
	client, err := h.services.Oven.Connect(ctx)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_connect_failed", "err", err)
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, errEngineStopped),
			time.Now().Add(writeWait))
		return
	}
	defer h.services.Oven.Disconnect(client)
	if h.log != nil {
		h.log.Infow("ws_client_connected", "remote", c.ClientIP())
	}

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.readCommands(ctx, conn, client, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-client.Done():
			return
		case <-ctx.Done():
			return
		case frame := <-client.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		}
	}
}

// readCommands executes every text frame as a command. Acks are queued on the
// requesting client only, so they are written by the same goroutine as telemetry.
func (h *Handler) readCommands(ctx context.Context, conn *websocket.Conn, client *telemetry.Client, done chan<- struct{}) {
	defer close(done)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
		ack, err := h.services.Oven.Command(ctx, string(msg))
		if err != nil {
			if h.log != nil {
				h.log.Errorw("ws_command_failed", "err", err)
			}
			return
		}
		if ack != nil {
			client.EnqueueJSON(ack)
		}
	}
}
