package domain

import (
	"strings"

	"github.com/google/uuid"
)

const RoomIDLen = 8

type (
	RoomID       string
	RoundID      string
	OptionID     string
	ConnectionID string
)

// NewRoomID returns a short lowercase alphanumeric id. Uniqueness among
// live rooms is checked by the registry.
func NewRoomID() RoomID {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return RoomID(raw[:RoomIDLen])
}

func NewRoundID() RoundID { return RoundID(uuid.NewString()) }

func NewConnectionID() ConnectionID { return ConnectionID(uuid.NewString()) }
