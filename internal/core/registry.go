package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/syncpad/syncpad/internal/domain"
)

type entry struct {
	RoomID   domain.RoomID
	Identity domain.Identity
	Conn     Conn
}

// Registry tracks live connections and which room each belongs to.
// It only knows about transports; roster truth lives at the store.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*entry)}
}

func (r *Registry) Bind(connID string, roomID domain.RoomID, id domain.Identity, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connID] = &entry{RoomID: roomID, Identity: id, Conn: conn}
	log.Info().Str("module", "core.registry").Str("conn", connID).Str("room", string(roomID)).Str("user", id.Username).Msg("bound connection")
}

func (r *Registry) Unbind(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connID)
	log.Info().Str("module", "core.registry").Str("conn", connID).Msg("unbound connection")
}

func (r *Registry) ConnCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// SendTo delivers to one connection; unknown ids are dropped.
func (r *Registry) SendTo(connID string, f Frame) {
	r.mu.RLock()
	e, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if err := e.Conn.TrySend(f); err != nil {
		log.Warn().Str("module", "core.registry").Str("conn", connID).Err(err).Msg("send dropped")
	}
}

// BroadcastRoom fans out to every connection in the room, the sender
// included when it is still bound.
func (r *Registry) BroadcastRoom(roomID domain.RoomID, f Frame) {
	r.broadcast(roomID, "", f)
}

// BroadcastExcept fans out to every connection in the room but the
// originator.
func (r *Registry) BroadcastExcept(roomID domain.RoomID, exceptConnID string, f Frame) {
	r.broadcast(roomID, exceptConnID, f)
}

func (r *Registry) broadcast(roomID domain.RoomID, exceptConnID string, f Frame) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for connID, e := range r.conns {
		if e.RoomID != roomID || connID == exceptConnID {
			continue
		}
		if err := e.Conn.TrySend(f); err != nil {
			log.Warn().Str("module", "core.registry").Str("conn", connID).Err(err).Msg("broadcast dropped")
		}
	}
}
