// Package protocol is the room WebSocket wire contract shared by the server
// session layer and the Go client.
package protocol

// Incoming (client -> server) message types.
const (
	TypePong              = "connection:pong"
	TypeRoomConnect       = "room:connect"
	TypeRoomDisconnect    = "room:disconnect"
	TypeSetDefaultOptions = "room:set-default-options"
	TypeAddVote           = "round:add-vote"
	TypeChangeOwner       = "room:change-owner"
	TypePostMessage       = "room:post-message"
	TypeCancelRound       = "round:cancel"
	TypeFinishRound       = "round:finish"
	TypeCreateRound       = "round:create"
)

// Outgoing (server -> client) message types.
const (
	TypeError              = "connection:error"
	TypePing               = "connection:ping"
	TypeRoomConnected      = "room:connected"
	TypeOwnerChange        = "room:owner-change"
	TypeRoundUpdate        = "round:update"
	TypeRoomUpdate         = "room:update"
	TypeChatUpdate         = "room:chat-update"
	TypeParticipantsChange = "room:participants-change"
	TypeRoomClosed         = "room:closed"
	TypeMessageReceived    = "message:received"
)
