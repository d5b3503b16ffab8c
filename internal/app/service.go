// Package app wires presence, live state, chat and snapshots together
// over the store and the connection registry.
package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/syncpad/syncpad/internal/core"
	"github.com/syncpad/syncpad/internal/domain"
	"github.com/syncpad/syncpad/internal/store"
)

// Service owns every room-scoped operation. Handlers are isolated:
// a failing event aborts itself, logs, and leaves the connection and
// all other rooms untouched. Only snapshot requests report failure
// back to the client.
type Service struct {
	store       store.Store
	reg         *core.Registry
	replayLimit int
}

func NewService(st store.Store, reg *core.Registry, replayLimit int) *Service {
	return &Service{store: st, reg: reg, replayLimit: replayLimit}
}

func (s *Service) Registry() *core.Registry { return s.reg }

// Join admits an authenticated connection into a room: resolves the
// room (creating it on first join), replaces any roster entry with the
// same username, sends the joiner current state and chat history, then
// broadcasts the full roster to everyone in the room.
func (s *Service) Join(ctx context.Context, connID string, id domain.Identity, roomID domain.RoomID, conn core.Conn) error {
	room, err := s.store.EnsureRoom(ctx, roomID)
	if err != nil {
		return err
	}

	p := domain.Participant{
		ConnID:   connID,
		Username: id.Username,
		Color:    domain.RandomColor(),
		JoinedAt: time.Now(),
	}
	if err := s.store.ReplaceParticipant(ctx, roomID, p); err != nil {
		return err
	}

	s.reg.Bind(connID, roomID, id, conn)

	if f, ok := encode(codeSnapshotEvent{Type: "code-snapshot", Code: room.Code}); ok {
		s.reg.SendTo(connID, f)
	}
	if f, ok := encode(languageUpdateEvent{Type: "language-update", Language: room.Language}); ok {
		s.reg.SendTo(connID, f)
	}

	history, err := s.store.RecentMessages(ctx, roomID, s.replayLimit)
	if err != nil {
		s.reg.Unbind(connID)
		return err
	}
	if history == nil {
		history = []domain.ChatMessage{}
	}
	if f, ok := encode(chatHistoryEvent{Type: "chat-history", Messages: history}); ok {
		s.reg.SendTo(connID, f)
	}

	if err := s.broadcastRoster(ctx, roomID); err != nil {
		s.reg.Unbind(connID)
		return err
	}

	log.Info().Str("module", "app").Str("conn", connID).Str("user", id.Username).Str("room", string(roomID)).Msg("joined room")
	return nil
}

// CodeChange replaces the room's code last-write-wins and bumps the
// version by one, then relays to everyone but the originator.
func (s *Service) CodeChange(ctx context.Context, connID string, roomID domain.RoomID, code string) {
	if err := s.store.SetCode(ctx, roomID, code); err != nil {
		log.Error().Str("module", "app").Str("room", string(roomID)).Err(err).Msg("code change failed")
		return
	}
	if f, ok := encode(codeUpdateEvent{Type: "code-update", Code: code}); ok {
		s.reg.BroadcastExcept(roomID, connID, f)
	}
}

// LanguageChange mirrors CodeChange over the language field; the
// version counter does not move.
func (s *Service) LanguageChange(ctx context.Context, connID string, roomID domain.RoomID, language string) {
	if err := s.store.SetLanguage(ctx, roomID, language); err != nil {
		log.Error().Str("module", "app").Str("room", string(roomID)).Err(err).Msg("language change failed")
		return
	}
	if f, ok := encode(languageUpdateEvent{Type: "language-update", Language: language}); ok {
		s.reg.BroadcastExcept(roomID, connID, f)
	}
}

// Chat appends the message with the client-declared timestamp kept
// verbatim, then broadcasts the stored record to the whole room, the
// sender included, so every client renders the canonical form.
func (s *Service) Chat(ctx context.Context, id domain.Identity, roomID domain.RoomID, text string, ts time.Time) {
	msg := domain.ChatMessage{
		RoomID:    roomID,
		Username:  id.Username,
		Text:      text,
		Timestamp: ts,
	}
	if err := s.store.AppendMessage(ctx, &msg); err != nil {
		log.Error().Str("module", "app").Str("room", string(roomID)).Err(err).Msg("chat append failed")
		return
	}
	if f, ok := encode(chatMessageEvent{Type: "chat-message", Message: msg}); ok {
		s.reg.BroadcastRoom(roomID, f)
	}
}

// Cursor relays an ephemeral cursor position to everyone but the
// originator. Nothing is persisted.
func (s *Service) Cursor(connID string, id domain.Identity, roomID domain.RoomID, position json.RawMessage) {
	f, ok := encode(cursorUpdateEvent{
		Type:     "cursor-update",
		UserID:   connID,
		Username: id.Username,
		Position: position,
	})
	if ok {
		s.reg.BroadcastExcept(roomID, connID, f)
	}
}

// Snapshot captures the room's current code state as a new immutable
// record and acknowledges the requester, success or not. The ack is
// never broadcast.
func (s *Service) Snapshot(ctx context.Context, connID string, id domain.Identity, roomID domain.RoomID) {
	room, err := s.store.Room(ctx, roomID)
	if err != nil {
		s.ackSnapshot(connID, err)
		return
	}

	snap := domain.Snapshot{
		RoomID:    roomID,
		Code:      room.Code,
		Language:  room.Language,
		Version:   room.Version,
		CreatedBy: id.Username,
	}
	s.ackSnapshot(connID, s.store.CreateSnapshot(ctx, &snap))
}

func (s *Service) ackSnapshot(connID string, err error) {
	ev := snapshotSavedEvent{Type: "snapshot-saved", Success: err == nil}
	if err != nil {
		ev.Error = err.Error()
		log.Error().Str("module", "app").Str("conn", connID).Err(err).Msg("snapshot failed")
	}
	if f, ok := encode(ev); ok {
		s.reg.SendTo(connID, f)
	}
}

// Leave removes the departing connection's roster entry by connection
// id and rebroadcasts the roster to whoever remains. The room record
// stays even when the roster empties; only the inactivity sweeper
// deletes rooms. Removal by connection id makes a close from a
// connection already replaced by a reconnect a harmless no-op.
func (s *Service) Leave(ctx context.Context, connID string, roomID domain.RoomID) {
	s.reg.Unbind(connID)

	if err := s.store.RemoveParticipant(ctx, roomID, connID); err != nil {
		log.Error().Str("module", "app").Str("conn", connID).Err(err).Msg("participant removal failed")
		return
	}
	if err := s.broadcastRoster(ctx, roomID); err != nil {
		log.Error().Str("module", "app").Str("room", string(roomID)).Err(err).Msg("roster rebroadcast failed")
	}
}

// broadcastRoster sends the entire current roster, not a delta, to
// every connection in the room. Full-roster fan-out trades bandwidth
// for clients that never need merge logic.
func (s *Service) broadcastRoster(ctx context.Context, roomID domain.RoomID) error {
	participants, err := s.store.Participants(ctx, roomID)
	if err != nil {
		return err
	}
	if participants == nil {
		participants = []domain.Participant{}
	}
	if f, ok := encode(rosterEvent{Type: "room-joined", Participants: participants}); ok {
		s.reg.BroadcastRoom(roomID, f)
	}
	return nil
}
