// Package store is the persistence boundary for rooms, participants,
// chat messages, snapshots and user accounts.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/syncpad/syncpad/internal/domain"
)

var ErrRoomNotFound = errors.New("room not found")

// Store is the injected room-store abstraction. Room creation is
// idempotent at the database level (unique room id), so two connections
// racing to create the same room both resolve to one record.
type Store interface {
	// Rooms
	EnsureRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	Room(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	SetCode(ctx context.Context, id domain.RoomID, code string) error
	SetLanguage(ctx context.Context, id domain.RoomID, language string) error

	// Presence
	ReplaceParticipant(ctx context.Context, id domain.RoomID, p domain.Participant) error
	RemoveParticipant(ctx context.Context, id domain.RoomID, connID string) error
	Participants(ctx context.Context, id domain.RoomID) ([]domain.Participant, error)

	// Chat
	AppendMessage(ctx context.Context, m *domain.ChatMessage) error
	RecentMessages(ctx context.Context, id domain.RoomID, limit int) ([]domain.ChatMessage, error)

	// Snapshots
	CreateSnapshot(ctx context.Context, s *domain.Snapshot) error
	SnapshotsByRoom(ctx context.Context, id domain.RoomID) ([]domain.Snapshot, error)

	// Users
	CreateUser(ctx context.Context, u *domain.User) error
	UserByUsername(ctx context.Context, username string) (*domain.User, error)

	// Retention
	DeleteIdleRooms(ctx context.Context, before time.Time) (int64, error)
	DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}
