package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Poker/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrInvalid     = errors.New("invalid message")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Command is a decoded client message. The concrete type tells the handler what to do.
type Command interface {
	CommandType() string
	// AckID is the messageID to acknowledge; empty for fire-and-forget messages.
	AckID() string
}

// Ref carries the fields every room command has.
type Ref struct {
	Type      string        `json:"type"`
	MessageID string        `json:"messageID" validate:"required"`
	RoomID    domain.RoomID `json:"roomID" validate:"required"`
	UserID    domain.UserID `json:"userID" validate:"required"`
}

func NewRef(typ string, roomID domain.RoomID, userID domain.UserID) Ref {
	return Ref{Type: typ, MessageID: uuid.NewString(), RoomID: roomID, UserID: userID}
}

func (r Ref) CommandType() string { return r.Type }
func (r Ref) AckID() string       { return r.MessageID }

type Connect struct {
	Ref
	PublicUserID domain.PublicUserID `json:"publicUserID" validate:"required"`
	Username     string              `json:"username" validate:"required"`
}

type Disconnect struct{ Ref }

type SetDefaultOptions struct {
	Ref
	Options []string `json:"options" validate:"required"`
}

type AddVote struct {
	Ref
	RoundID   domain.RoundID  `json:"roundID" validate:"required"`
	OptionRef domain.OptionID `json:"optionRef" validate:"required"`
}

type ChangeOwner struct {
	Ref
	NewOwnerID domain.UserID `json:"newOwnerID" validate:"required"`
}

type PostMessage struct {
	Ref
	Text string `json:"text" validate:"required"`
}

type CancelRound struct{ Ref }

type FinishRound struct{ Ref }

type CreateRound struct{ Ref }

type Pong struct {
	Type string `json:"type"`
}

func NewPong() Pong { return Pong{Type: TypePong} }

func (p Pong) CommandType() string { return TypePong }
func (p Pong) AckID() string       { return "" }

// Decode parses and validates one client frame.
func Decode(data []byte) (Command, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var cmd Command
	switch env.Type {
	case TypeRoomConnect:
		cmd = &Connect{}
	case TypeRoomDisconnect:
		cmd = &Disconnect{}
	case TypeSetDefaultOptions:
		cmd = &SetDefaultOptions{}
	case TypeAddVote:
		cmd = &AddVote{}
	case TypeChangeOwner:
		cmd = &ChangeOwner{}
	case TypePostMessage:
		cmd = &PostMessage{}
	case TypeCancelRound:
		cmd = &CancelRound{}
	case TypeFinishRound:
		cmd = &FinishRound{}
	case TypeCreateRound:
		cmd = &CreateRound{}
	case TypePong:
		cmd = &Pong{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if err := json.Unmarshal(data, cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cmd, nil
}
