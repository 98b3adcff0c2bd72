package signal

import (
	"github.com/dkeye/Poker/internal/core"
	"github.com/dkeye/Poker/internal/domain"
	"github.com/dkeye/Poker/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) dispatch(sess *session, cmd protocol.Command) error {
	switch cmd := cmd.(type) {
	case *protocol.Connect:
		return ctl.handleJoin(sess, cmd)
	case *protocol.Disconnect:
		return ctl.handleLeave(sess, cmd)
	case *protocol.AddVote:
		room, err := ctl.room(cmd.Ref)
		if err != nil {
			return err
		}
		return room.PostUserVote(cmd.UserID, cmd.RoundID, cmd.OptionRef)
	case *protocol.PostMessage:
		room, err := ctl.room(cmd.Ref)
		if err != nil {
			return err
		}
		room.PostMessage(cmd.UserID, cmd.Text)
	case *protocol.CreateRound:
		room, err := ctl.ownedRoom(cmd.Ref)
		if err != nil {
			return err
		}
		room.StartNewRound(cmd.UserID)
	case *protocol.FinishRound:
		room, err := ctl.ownedRoom(cmd.Ref)
		if err != nil {
			return err
		}
		room.FinishLastRound()
	case *protocol.CancelRound:
		room, err := ctl.ownedRoom(cmd.Ref)
		if err != nil {
			return err
		}
		room.CancelLastRound(cmd.UserID)
	case *protocol.ChangeOwner:
		room, err := ctl.ownedRoom(cmd.Ref)
		if err != nil {
			return err
		}
		target, err := room.ResolveParticipant(string(cmd.NewOwnerID))
		if err != nil {
			return err
		}
		room.SetOwner(target.UserID(), target.PublicUserID(), target.Username())
	case *protocol.SetDefaultOptions:
		room, err := ctl.ownedRoom(cmd.Ref)
		if err != nil {
			return err
		}
		room.SetDefaultOptions(cmd.Options)
	default:
		log.Warn().Str("module", "signal").Str("type", cmd.CommandType()).Msg("unhandled command")
	}
	return nil
}

func (ctl *Controller) room(ref protocol.Ref) (*core.Room, error) {
	return ctl.Rooms.GetRoom(ref.RoomID)
}

func (ctl *Controller) ownedRoom(ref protocol.Ref) (*core.Room, error) {
	room, err := ctl.room(ref)
	if err != nil {
		return nil, err
	}
	if !room.IsOwner(ref.UserID) {
		return nil, domain.Unauthorized("Unauthorized access. Only room owner can perform %s action.", ref.Type)
	}
	return room, nil
}

func (ctl *Controller) handleJoin(sess *session, cmd *protocol.Connect) error {
	room, err := ctl.room(cmd.Ref)
	if err != nil {
		log.Info().Str("module", "signal").Str("room", string(cmd.RoomID)).Msg("join to unknown room")
		ctl.sendJSON(sess.conn, protocol.NewRoomClosed(cmd.RoomID))
		return nil
	}
	user, err := domain.NewUser(cmd.UserID, cmd.PublicUserID, cmd.Username)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad join payload")
		return nil
	}

	rc, err := room.CreateConnection(*user)
	if err != nil {
		return err
	}
	if room.IsOwner(user.ID) && room.OwnerPublicID() != user.PublicID {
		room.SetOwner(user.ID, user.PublicID, user.Username)
	}
	sess.bind(room.ID(), rc)
	if room.IsDisposed() {
		return nil
	}

	log.Info().Str("module", "signal").Str("room", string(room.ID())).Str("conn", string(rc.ID())).Msg("join")
	ctl.sendJSON(sess.conn, protocol.NewRoomConnected(rc.ID(), room.View(), user.PublicID))
	return nil
}

// handleLeave removes the participant from the room; the socket stays open.
func (ctl *Controller) handleLeave(sess *session, cmd *protocol.Disconnect) error {
	room, err := ctl.room(cmd.Ref)
	if err != nil {
		return err
	}
	log.Info().Str("module", "signal").Str("room", string(room.ID())).Str("user", string(cmd.UserID)).Msg("leave")
	room.CloseUserConnection(cmd.UserID)
	if sess.roomID == room.ID() {
		sess.detach()
	}
	return nil
}
