package domain

import "time"

// ChatMessage is an append-only chat record. Timestamp is the
// client-declared value stored verbatim; ordering within a room
// follows it, not arrival order.
type ChatMessage struct {
	ID        int64     `json:"id"`
	RoomID    RoomID    `json:"roomId"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is an immutable point-in-time copy of a room's code state,
// created only on explicit request. Never overwritten, never purged
// by the retention sweeper.
type Snapshot struct {
	ID        int64     `json:"id"`
	RoomID    RoomID    `json:"roomId"`
	Code      string    `json:"code"`
	Language  string    `json:"language"`
	Version   int64     `json:"version"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}
