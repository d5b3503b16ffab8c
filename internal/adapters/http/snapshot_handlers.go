package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/syncpad/syncpad/internal/domain"
	"github.com/syncpad/syncpad/internal/store"
)

type SnapshotHandlers struct {
	Store store.Store
}

// List returns a room's snapshots newest-first. Snapshots are
// immutable, so this is a plain read surface.
func (h *SnapshotHandlers) List(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))

	snaps, err := h.Store.SnapshotsByRoom(c.Request.Context(), roomID)
	if err != nil {
		log.Error().Str("module", "adapters.http").Str("room", string(roomID)).Err(err).Msg("snapshot list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
		return
	}
	if snaps == nil {
		snaps = []domain.Snapshot{}
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps})
}
