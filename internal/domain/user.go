// Package domain contains entities without behavior, just meta-data.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxUsernameLen = 36
	MinPasswordLen = 6
)

var (
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameTaken   = errors.New("username already taken")
)

type UserID string

// User is a registered account. PasswordHash never leaves the store
// layer; the identity carried on connections is Identity.
type User struct {
	ID           UserID `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

func NewUser(username, passwordHash string) (*User, error) {
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	return &User{
		ID:           UserID(uuid.NewString()),
		Username:     username,
		PasswordHash: passwordHash,
	}, nil
}

// Identity is the verified user bound to a connection at handshake.
// Presence and chat attribution read from here, never from payloads.
type Identity struct {
	UserID   UserID
	Username string
}
