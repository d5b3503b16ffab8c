// Package http builds the gin router: auth routes, health, snapshot
// listing and the websocket entrypoint.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/syncpad/syncpad/internal/adapters/ws"
	"github.com/syncpad/syncpad/internal/app"
	"github.com/syncpad/syncpad/internal/auth"
	"github.com/syncpad/syncpad/internal/config"
	"github.com/syncpad/syncpad/internal/store"
)

func SetupRouter(cfg *config.Config, st store.Store, svc *app.Service, am *auth.Manager) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
	})

	authH := &AuthHandlers{Store: st, Auth: am}
	snapH := &SnapshotHandlers{Store: st}
	wsCtl := ws.NewController(svc, am, cfg)

	api := r.Group("/api")
	api.POST("/auth/register", authH.Register)
	api.POST("/auth/login", authH.Login)
	api.GET("/rooms/:id/snapshots", snapH.List)
	api.GET("/ws", wsCtl.HandleWS)

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
