package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Poker/internal/domain"
)

// SentAtLayout matches what browsers produce with Date.toISOString.
const SentAtLayout = "2006-01-02T15:04:05.000Z07:00"

type Participant struct {
	IsActive bool                `json:"isActive"`
	PublicID domain.PublicUserID `json:"publicID"`
	Username string              `json:"username"`
}

type ChatMessageView struct {
	Text         string              `json:"text"`
	PublicUserID domain.PublicUserID `json:"publicUserID,omitempty"`
	Username     string              `json:"username,omitempty"`
	SentAt       string              `json:"sentAt"`
}

type ResultView struct {
	PublicUserID domain.PublicUserID `json:"publicUserID"`
	Username     string              `json:"username"`
	Vote         string              `json:"vote"`
}

type RoundView struct {
	ID           domain.RoundID       `json:"id"`
	IsInProgress bool                 `json:"isInProgress"`
	HasResults   bool                 `json:"hasResults"`
	Options      []domain.RoundOption `json:"options"`
	Results      []ResultView         `json:"results"`
	FinalResult  *domain.FinalResults `json:"finalResult,omitempty"`
}

type RoomView struct {
	OwnerPublicID  domain.PublicUserID  `json:"ownerPublicID"`
	OwnerName      string               `json:"ownerName"`
	RoomID         domain.RoomID        `json:"roomID"`
	ChatMessages   []ChatMessageView    `json:"chatMessages"`
	Rounds         []RoundView          `json:"rounds"`
	Participants   []Participant        `json:"participants"`
	DefaultOptions []domain.RoundOption `json:"defaultOptions"`
}

// Event is a decoded server message.
type Event interface {
	EventType() string
}

type RoomConnected struct {
	Type         string              `json:"type"`
	ConnectionID domain.ConnectionID `json:"connectionID"`
	Room         RoomView            `json:"room"`
	UserPublicID domain.PublicUserID `json:"userPublicID"`
}

type OwnerChange struct {
	Type          string              `json:"type"`
	OwnerPublicID domain.PublicUserID `json:"ownerPublicID"`
	OwnerName     string              `json:"ownerName"`
}

type RoundUpdate struct {
	Type string `json:"type"`
	RoundView
}

type RoomUpdate struct {
	Type string `json:"type"`
	RoomView
}

type ChatUpdate struct {
	Type         string            `json:"type"`
	ChatMessages []ChatMessageView `json:"chatMessages"`
}

type ParticipantsChange struct {
	Type         string        `json:"type"`
	Participants []Participant `json:"participants"`
}

type RoomClosed struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomID"`
}

type ErrorMessage struct {
	Type     string `json:"type"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	CausedBy string `json:"causedBy"`
}

type Ping struct {
	Type string `json:"type"`
}

type MessageReceived struct {
	Type      string `json:"type"`
	MessageID string `json:"messageID"`
}

func NewRoomConnected(id domain.ConnectionID, room RoomView, publicID domain.PublicUserID) RoomConnected {
	return RoomConnected{Type: TypeRoomConnected, ConnectionID: id, Room: room, UserPublicID: publicID}
}

func NewOwnerChange(publicID domain.PublicUserID, name string) OwnerChange {
	return OwnerChange{Type: TypeOwnerChange, OwnerPublicID: publicID, OwnerName: name}
}

func NewRoundUpdate(v RoundView) RoundUpdate { return RoundUpdate{Type: TypeRoundUpdate, RoundView: v} }

func NewRoomUpdate(v RoomView) RoomUpdate { return RoomUpdate{Type: TypeRoomUpdate, RoomView: v} }

func NewChatUpdate(msgs []ChatMessageView) ChatUpdate {
	return ChatUpdate{Type: TypeChatUpdate, ChatMessages: msgs}
}

func NewParticipantsChange(ps []Participant) ParticipantsChange {
	return ParticipantsChange{Type: TypeParticipantsChange, Participants: ps}
}

func NewRoomClosed(id domain.RoomID) RoomClosed { return RoomClosed{Type: TypeRoomClosed, RoomID: id} }

func NewError(code domain.Code, message, causedBy string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Code: int(code), Message: message, CausedBy: causedBy}
}

func NewPing() Ping { return Ping{Type: TypePing} }

func NewMessageReceived(id string) MessageReceived {
	return MessageReceived{Type: TypeMessageReceived, MessageID: id}
}

func (m RoomConnected) EventType() string      { return TypeRoomConnected }
func (m OwnerChange) EventType() string        { return TypeOwnerChange }
func (m RoundUpdate) EventType() string        { return TypeRoundUpdate }
func (m RoomUpdate) EventType() string         { return TypeRoomUpdate }
func (m ChatUpdate) EventType() string         { return TypeChatUpdate }
func (m ParticipantsChange) EventType() string { return TypeParticipantsChange }
func (m RoomClosed) EventType() string         { return TypeRoomClosed }
func (m ErrorMessage) EventType() string       { return TypeError }
func (m Ping) EventType() string               { return TypePing }
func (m MessageReceived) EventType() string    { return TypeMessageReceived }

// DecodeEvent parses one server frame.
func DecodeEvent(data []byte) (Event, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var ev Event
	switch env.Type {
	case TypeRoomConnected:
		ev = &RoomConnected{}
	case TypeOwnerChange:
		ev = &OwnerChange{}
	case TypeRoundUpdate:
		ev = &RoundUpdate{}
	case TypeRoomUpdate:
		ev = &RoomUpdate{}
	case TypeChatUpdate:
		ev = &ChatUpdate{}
	case TypeParticipantsChange:
		ev = &ParticipantsChange{}
	case TypeRoomClosed:
		ev = &RoomClosed{}
	case TypeError:
		ev = &ErrorMessage{}
	case TypePing:
		ev = &Ping{}
	case TypeMessageReceived:
		ev = &MessageReceived{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return ev, nil
}
