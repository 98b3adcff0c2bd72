// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 64
)

var (
	ErrUserIDEmpty     = errors.New("user id empty")
	ErrUserIDTooLong   = errors.New("user id too long")
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

// UserID is the private, client-held identity. It is never broadcast.
type UserID string

// PublicUserID is the identity other participants see.
type PublicUserID string

type User struct {
	ID       UserID       `json:"id"`
	PublicID PublicUserID `json:"publicID"`
	Username string       `json:"username"`
}

// NewUser validates the identity triple a client presents when it joins or creates a room.
func NewUser(id UserID, publicID PublicUserID, username string) (*User, error) {
	if err := ValidateUserID(id); err != nil {
		return nil, err
	}
	u := &User{ID: id, PublicID: publicID}
	if err := u.SetUsername(username); err != nil {
		return nil, err
	}
	return u, nil
}

func ValidateUserID(id UserID) error {
	if len(id) == 0 {
		return ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return ErrUserIDTooLong
	}
	return nil
}

func (u *User) SetUsername(username string) error {
	username = strings.TrimSpace(username)
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.Username = username
	return nil
}
