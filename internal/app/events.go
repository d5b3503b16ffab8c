package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/syncpad/syncpad/internal/core"
	"github.com/syncpad/syncpad/internal/domain"
)

// Server-to-client event envelopes. Every frame carries a "type"
// discriminator; the rest of the shape depends on it.

type codeSnapshotEvent struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

type codeUpdateEvent struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

type languageUpdateEvent struct {
	Type     string `json:"type"`
	Language string `json:"language"`
}

type chatHistoryEvent struct {
	Type     string               `json:"type"`
	Messages []domain.ChatMessage `json:"messages"`
}

type chatMessageEvent struct {
	Type    string             `json:"type"`
	Message domain.ChatMessage `json:"message"`
}

type rosterEvent struct {
	Type         string               `json:"type"`
	Participants []domain.Participant `json:"participants"`
}

type cursorUpdateEvent struct {
	Type     string          `json:"type"`
	UserID   string          `json:"userId"`
	Username string          `json:"username"`
	Position json.RawMessage `json:"position"`
}

type snapshotSavedEvent struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func encode(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Str("module", "app").Err(err).Msg("event marshal")
		return nil, false
	}
	return core.Frame(b), true
}
