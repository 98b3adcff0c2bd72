package core

import (
	"strings"

	"github.com/dkeye/Poker/internal/domain"
	"github.com/rs/zerolog/log"
)

// chatCommand is a slash command typed into the room chat.
type chatCommand interface {
	ownerOnly() bool
}

type (
	// transferCommand: /transfer <username>
	transferCommand struct{ username string }
	// voteCommand: /vote <value>, a free-form vote
	voteCommand struct{ value string }
	// closeCommand: /close
	closeCommand struct{}
	// setOptionsCommand: /setoptions v1 v2 ...
	setOptionsCommand struct{ names []string }
	// unknownCommand is any other slash text. It is ignored.
	unknownCommand struct{ name string }
)

func (transferCommand) ownerOnly() bool   { return false }
func (voteCommand) ownerOnly() bool       { return false }
func (closeCommand) ownerOnly() bool      { return true }
func (setOptionsCommand) ownerOnly() bool { return true }
func (unknownCommand) ownerOnly() bool    { return false }

// parseChatCommand returns false for ordinary chat text.
func parseChatCommand(text string) (chatCommand, bool) {
	if !strings.HasPrefix(text, "/") {
		return nil, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return unknownCommand{}, true
	}
	name, args := fields[0], fields[1:]
	switch name {
	case "transfer":
		if len(args) == 0 {
			return unknownCommand{name: name}, true
		}
		return transferCommand{username: args[0]}, true
	case "vote":
		if len(args) == 0 {
			return unknownCommand{name: name}, true
		}
		return voteCommand{value: args[0]}, true
	case "close":
		return closeCommand{}, true
	case "setoptions":
		if len(args) == 0 {
			return unknownCommand{name: name}, true
		}
		return setOptionsCommand{names: args}, true
	default:
		return unknownCommand{name: name}, true
	}
}

func (r *Room) runChatCommand(userID domain.UserID, cmd chatCommand) {
	closeRoom := false
	r.mutate(func() {
		if cmd.ownerOnly() && userID != r.ownerID {
			return
		}
		switch c := cmd.(type) {
		case transferCommand:
			if idx := r.connectionIndex(func(conn *Connection) bool { return conn.user.Username == c.username }); idx >= 0 {
				next := r.connections[idx]
				r.setOwnerLocked(next.user.ID, next.user.PublicID, next.user.Username)
			}
		case voteCommand:
			if conn := r.findUserConnection(userID); conn != nil {
				r.addVoteLocked(conn, c.value)
			}
		case closeCommand:
			closeRoom = true
		case setOptionsCommand:
			r.setDefaultOptionsLocked(c.names)
		case unknownCommand:
			log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("command", c.name).Msg("unknown chat command")
		}
	})
	if closeRoom {
		r.opts.OnClose(r.id)
	}
}
