package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/syncpad/syncpad/internal/domain"
)

func (ctl *Controller) writePump(connID string, c *wsConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, f); err != nil {
				log.Error().Str("module", "adapters.ws").Str("conn", connID).Err(err).Msg("write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles this connection's events in arrival order until the
// transport closes, then runs the disconnect reconciliation.
func (ctl *Controller) readPump(connID string, id domain.Identity, roomID domain.RoomID, c *wsConn) {
	// Liveness is the transport's job: a peer that stops answering
	// pings trips the read deadline and lands in Leave like any other
	// disconnect.
	pongWait := ctl.cfg.PingPeriod * 10 / 9
	defer func() {
		c.Close()
		ctl.app.Leave(context.Background(), connID, roomID)
		log.Info().Str("module", "adapters.ws").Str("conn", connID).Str("room", string(roomID)).Msg("connection closed")
	}()

	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Str("module", "adapters.ws").Str("conn", connID).Err(err).Msg("read error")
			}
			return
		}
		ctl.dispatch(connID, id, c, data)
	}
}
