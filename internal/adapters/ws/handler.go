package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/syncpad/syncpad/internal/app"
	"github.com/syncpad/syncpad/internal/auth"
	"github.com/syncpad/syncpad/internal/config"
	"github.com/syncpad/syncpad/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Controller struct {
	app  *app.Service
	auth *auth.Manager
	cfg  *config.Config
}

func NewController(svc *app.Service, am *auth.Manager, cfg *config.Config) *Controller {
	return &Controller{app: svc, auth: am, cfg: cfg}
}

// HandleWS is the single room entrypoint. The credential and the room
// id are checked before the upgrade; a connection that fails either is
// terminated without processing any room event. The handler blocks on
// the read pump for the lifetime of the connection.
func (ctl *Controller) HandleWS(c *gin.Context) {
	identity, err := ctl.auth.Verify(bearerToken(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	roomID := domain.RoomID(c.Query("room"))
	if roomID == "" || len(roomID) > domain.MaxRoomIDLen {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing room"})
		return
	}

	wsc, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Str("module", "adapters.ws").Err(err).Msg("upgrade failed")
		return
	}

	connID := uuid.NewString()
	conn := newWSConn(wsc, ctl.cfg.SendBuffer)
	go ctl.writePump(connID, conn)

	log.Info().Str("module", "adapters.ws").Str("conn", connID).Str("user", identity.Username).Str("room", string(roomID)).Msg("connection admitted")

	// Event processing is never tied to the request context: once a
	// mutation starts it runs to completion even if the peer goes away.
	if err := ctl.app.Join(context.Background(), connID, identity, roomID, conn); err != nil {
		log.Error().Str("module", "adapters.ws").Str("conn", connID).Err(err).Msg("join failed")
		conn.Close()
		return
	}

	ctl.readPump(connID, identity, roomID, conn)
}

func bearerToken(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	h := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return after
	}
	return ""
}
