package domain

import "time"

type RoomID string

const (
	MaxRoomIDLen = 64

	DefaultCode     = "// Start coding together!"
	DefaultLanguage = "javascript"
)

// Room is the shared session state for one room id. The roster is
// mutated only through the presence operations; code, language and
// version are last-write-wins at the store.
type Room struct {
	ID           RoomID
	Participants []Participant
	Code         string
	Language     string
	Version      int64
	CreatedAt    time.Time
	LastActivity time.Time
}

// Participant is a user's live presence inside a room. ConnID is the
// transport connection, not the user: a reconnect gets a fresh ConnID
// while the username stays the same.
type Participant struct {
	ConnID   string    `json:"id"`
	Username string    `json:"username"`
	Color    string    `json:"color"`
	JoinedAt time.Time `json:"-"`
}
