package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/syncpad/syncpad/internal/core"
	"github.com/syncpad/syncpad/internal/domain"
)

var validate = validator.New()

type codeChangePayload struct {
	RoomID string `json:"roomId" validate:"required"`
	Code   string `json:"code"`
}

type languageChangePayload struct {
	RoomID   string `json:"roomId" validate:"required"`
	Language string `json:"language" validate:"required"`
}

type chatMessagePayload struct {
	RoomID  string `json:"roomId" validate:"required"`
	Message struct {
		Text      string `json:"text" validate:"required"`
		Timestamp int64  `json:"timestamp" validate:"required"`
	} `json:"message" validate:"required"`
}

type cursorPayload struct {
	RoomID   string          `json:"roomId" validate:"required"`
	Position json.RawMessage `json:"position" validate:"required"`
}

type snapshotPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

func (ctl *Controller) dispatch(connID string, id domain.Identity, c *wsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Str("module", "adapters.ws").Str("conn", connID).Err(err).Msg("bad json")
		ctl.sendError(c, "bad_payload")
		return
	}

	ctx := context.Background()

	switch env.Type {
	case "code-change":
		var p codeChangePayload
		if !ctl.decode(c, connID, data, &p) {
			return
		}
		ctl.app.CodeChange(ctx, connID, domain.RoomID(p.RoomID), p.Code)
	case "language-change":
		var p languageChangePayload
		if !ctl.decode(c, connID, data, &p) {
			return
		}
		ctl.app.LanguageChange(ctx, connID, domain.RoomID(p.RoomID), p.Language)
	case "chat-message":
		var p chatMessagePayload
		if !ctl.decode(c, connID, data, &p) {
			return
		}
		// The client-declared timestamp is stored as sent.
		ts := time.UnixMilli(p.Message.Timestamp).UTC()
		ctl.app.Chat(ctx, id, domain.RoomID(p.RoomID), p.Message.Text, ts)
	case "cursor-position":
		var p cursorPayload
		if !ctl.decode(c, connID, data, &p) {
			return
		}
		ctl.app.Cursor(connID, id, domain.RoomID(p.RoomID), p.Position)
	case "request-snapshot":
		var p snapshotPayload
		if !ctl.decode(c, connID, data, &p) {
			return
		}
		ctl.app.Snapshot(ctx, connID, id, domain.RoomID(p.RoomID))
	default:
		log.Warn().Str("module", "adapters.ws").Str("conn", connID).Str("type", env.Type).Msg("unknown event")
	}
}

// decode unmarshals and validates an event payload; malformed input is
// rejected with an explicit error frame instead of being trusted.
func (ctl *Controller) decode(c *wsConn, connID string, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Error().Str("module", "adapters.ws").Str("conn", connID).Err(err).Msg("bad payload")
		ctl.sendError(c, "bad_payload")
		return false
	}
	if err := validate.Struct(v); err != nil {
		log.Error().Str("module", "adapters.ws").Str("conn", connID).Err(err).Msg("invalid payload")
		ctl.sendError(c, "invalid_payload")
		return false
	}
	return true
}

func (ctl *Controller) sendError(c *wsConn, code string) {
	b, err := json.Marshal(map[string]string{"type": "error", "error": code})
	if err != nil {
		return
	}
	_ = c.TrySend(core.Frame(b))
}
