package client

import (
	"slices"

	"github.com/dkeye/Poker/internal/domain"
	"github.com/dkeye/Poker/internal/protocol"
)

// RoomState is the client's local copy of the room, rebuilt from every
// room:connected snapshot and patched by the incremental updates.
type RoomState struct {
	RoomID         domain.RoomID
	ConnectionID   domain.ConnectionID
	Self           domain.PublicUserID
	OwnerPublicID  domain.PublicUserID
	OwnerName      string
	Participants   []protocol.Participant
	Rounds         []protocol.RoundView
	Chat           []protocol.ChatMessageView
	DefaultOptions []domain.RoundOption
}

func (s RoomState) IsOwner() bool { return s.Self != "" && s.Self == s.OwnerPublicID }

// ActiveRound returns the last round while it is still in progress.
func (s RoomState) ActiveRound() (protocol.RoundView, bool) {
	if len(s.Rounds) == 0 {
		return protocol.RoundView{}, false
	}
	last := s.Rounds[len(s.Rounds)-1]
	return last, last.IsInProgress
}

// Option finds a default option by its label.
func (s RoomState) Option(name string) (domain.RoundOption, bool) {
	i := slices.IndexFunc(s.DefaultOptions, func(o domain.RoundOption) bool { return o.Name == name })
	if i < 0 {
		return domain.RoundOption{}, false
	}
	return s.DefaultOptions[i], true
}

func (s RoomState) clone() RoomState {
	s.Participants = slices.Clone(s.Participants)
	s.Rounds = slices.Clone(s.Rounds)
	s.Chat = slices.Clone(s.Chat)
	s.DefaultOptions = slices.Clone(s.DefaultOptions)
	return s
}

func (s *RoomState) replace(ev *protocol.RoomConnected) {
	*s = RoomState{ConnectionID: ev.ConnectionID, Self: ev.UserPublicID}
	s.applyRoom(ev.Room)
}

func (s *RoomState) applyRoom(v protocol.RoomView) {
	s.RoomID = v.RoomID
	s.OwnerPublicID = v.OwnerPublicID
	s.OwnerName = v.OwnerName
	s.Participants = v.Participants
	s.Rounds = v.Rounds
	s.Chat = v.ChatMessages
	s.DefaultOptions = v.DefaultOptions
}

func (s *RoomState) applyRound(v protocol.RoundView) {
	if i := slices.IndexFunc(s.Rounds, func(r protocol.RoundView) bool { return r.ID == v.ID }); i >= 0 {
		s.Rounds[i] = v
		return
	}
	s.Rounds = append(s.Rounds, v)
}

func (s *RoomState) apply(ev protocol.Event) {
	switch ev := ev.(type) {
	case *protocol.RoomConnected:
		s.replace(ev)
	case *protocol.RoomUpdate:
		s.applyRoom(ev.RoomView)
	case *protocol.RoundUpdate:
		s.applyRound(ev.RoundView)
	case *protocol.ChatUpdate:
		s.Chat = ev.ChatMessages
	case *protocol.ParticipantsChange:
		s.Participants = ev.Participants
	case *protocol.OwnerChange:
		s.OwnerPublicID = ev.OwnerPublicID
		s.OwnerName = ev.OwnerName
	}
}
