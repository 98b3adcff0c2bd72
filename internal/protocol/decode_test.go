package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeCommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		wantType string
		wantAck  string
	}{
		{
			name:     "connect",
			raw:      `{"type":"room:connect","messageID":"m1","roomID":"abcd1234","userID":"u1","publicUserID":"p1","username":"Ann"}`,
			wantType: TypeRoomConnect,
			wantAck:  "m1",
		},
		{
			name:     "vote",
			raw:      `{"type":"round:add-vote","messageID":"m2","roomID":"r","userID":"u","roundID":"rd","optionRef":"o"}`,
			wantType: TypeAddVote,
			wantAck:  "m2",
		},
		{
			name:     "set options",
			raw:      `{"type":"room:set-default-options","messageID":"m3","roomID":"r","userID":"u","options":["1","2"]}`,
			wantType: TypeSetDefaultOptions,
			wantAck:  "m3",
		},
		{
			name:     "finish",
			raw:      `{"type":"round:finish","messageID":"m4","roomID":"r","userID":"u"}`,
			wantType: TypeFinishRound,
			wantAck:  "m4",
		},
		{
			name:     "pong",
			raw:      `{"type":"connection:pong"}`,
			wantType: TypePong,
			wantAck:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if cmd.CommandType() != tt.wantType {
				t.Fatalf("type = %q, want %q", cmd.CommandType(), tt.wantType)
			}
			if cmd.AckID() != tt.wantAck {
				t.Fatalf("ack id = %q, want %q", cmd.AckID(), tt.wantAck)
			}
		})
	}
}

func TestDecodeConnectFields(t *testing.T) {
	t.Parallel()

	cmd, err := Decode([]byte(`{"type":"room:connect","messageID":"m1","roomID":"abcd1234","userID":"u1","publicUserID":"p1","username":"Ann"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	c, ok := cmd.(*Connect)
	if !ok {
		t.Fatalf("got %T, want *Connect", cmd)
	}
	if c.RoomID != "abcd1234" || c.UserID != "u1" || c.PublicUserID != "p1" || c.Username != "Ann" {
		t.Fatalf("unexpected fields: %+v", c)
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "not json", raw: `{nope`, want: ErrInvalid},
		{name: "unknown type", raw: `{"type":"room:explode"}`, want: ErrUnknownType},
		{name: "missing message id", raw: `{"type":"round:finish","roomID":"r","userID":"u"}`, want: ErrInvalid},
		{name: "missing username", raw: `{"type":"room:connect","messageID":"m","roomID":"r","userID":"u","publicUserID":"p"}`, want: ErrInvalid},
		{name: "wrong field type", raw: `{"type":"room:set-default-options","messageID":"m","roomID":"r","userID":"u","options":"1,2"}`, want: ErrInvalid},
		{name: "missing options", raw: `{"type":"room:set-default-options","messageID":"m","roomID":"r","userID":"u"}`, want: ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.raw)); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRoundUpdateFlattensView(t *testing.T) {
	t.Parallel()

	msg := NewRoundUpdate(RoundView{ID: "r1", IsInProgress: true, HasResults: true})
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if fields["type"] != TypeRoundUpdate || fields["id"] != "r1" {
		t.Fatalf("unexpected payload: %s", raw)
	}
	if _, ok := fields["finalResult"]; ok {
		t.Fatalf("finalResult must be omitted for a live round: %s", raw)
	}

	ev, err := DecodeEvent(raw)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ru, ok := ev.(*RoundUpdate); !ok || ru.ID != "r1" {
		t.Fatalf("DecodeEvent = %#v", ev)
	}
}
