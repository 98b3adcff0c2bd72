package core

import (
	"encoding/json"
	"fmt"
	"html"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Poker/internal/domain"
	"github.com/dkeye/Poker/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Room is a threadsafe in-memory estimation room.
// Every exported mutator runs under the room lock, broadcasts the resulting view
// and then hands the room to the Persister.
type Room struct {
	mu sync.RWMutex

	id           domain.RoomID
	createdAt    time.Time
	lastActivity time.Time

	ownerID       domain.UserID
	ownerPublicID domain.PublicUserID
	ownerName     string

	rounds         []*Round
	defaultOptions []domain.RoundOption
	chat           []domain.ChatMessage
	connections    []*Connection

	disposed bool
	opts     Options
}

func NewRoom(id domain.RoomID, ownerID domain.UserID, ownerName string, opts Options) *Room {
	opts = opts.withDefaults()
	now := opts.Clock()
	defaults := domain.NewRoundOptions(domain.DefaultOptionNames)
	r := &Room{
		id:             id,
		createdAt:      now,
		lastActivity:   now,
		ownerID:        ownerID,
		ownerName:      ownerName,
		defaultOptions: defaults,
		rounds:         []*Round{newRound(defaults)},
		chat:           []domain.ChatMessage{},
		opts:           opts,
	}
	if r.opts.OnClose == nil {
		r.opts.OnClose = func(domain.RoomID) { r.Dispose() }
	}
	return r
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) CreatedAt() time.Time { return r.createdAt }

func (r *Room) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}

func (r *Room) IsOwner(userID domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ownerID == userID
}

func (r *Room) OwnerPublicID() domain.PublicUserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ownerPublicID
}

// IsStale is true once the room has been idle past StaleAfter and nobody holds an open socket.
func (r *Room) IsStale() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.opts.Clock().Sub(r.lastActivity) <= r.opts.StaleAfter {
		return false
	}
	for _, c := range r.connections {
		if c.isActiveLocked() {
			return false
		}
	}
	return true
}

func (r *Room) IsDisposed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disposed
}

// IsActiveRound reports whether id is the latest round.
func (r *Room) IsActiveRound(id domain.RoundID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRound().id == id
}

// ActiveConnectionCount counts participants with at least one open socket.
func (r *Room) ActiveConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.connections {
		if c.isActiveLocked() {
			n++
		}
	}
	return n
}

func (r *Room) FindUserConnection(userID domain.UserID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.findUserConnection(userID)
	return c, c != nil
}

func (r *Room) GetUserConnection(userID domain.UserID) (*Connection, error) {
	if c, ok := r.FindUserConnection(userID); ok {
		return c, nil
	}
	return nil, domain.NotFound("RoomConnection for user %s not found.", userID)
}

// ResolveParticipant finds a connection by private user id, falling back to the public id.
func (r *Room) ResolveParticipant(id string) (*Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c := r.findUserConnection(domain.UserID(id)); c != nil {
		return c, nil
	}
	for _, c := range r.connections {
		if string(c.user.PublicID) == id {
			return c, nil
		}
	}
	return nil, domain.NotFound("RoomConnection for user %s not found.", id)
}

// CreateConnection returns the participant's connection, creating it on first join.
func (r *Room) CreateConnection(u domain.User) (*Connection, error) {
	var conn *Connection
	err := r.mutateErr(func() error {
		if c := r.findUserConnection(u.ID); c != nil {
			conn = c
			return nil
		}
		conn = newConnection(r, u, r.opts.Clock())
		r.connections = append(r.connections, conn)
		log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("conn", string(conn.id)).Msg("connection added")
		r.broadcastParticipants()
		r.addSystemMessage(fmt.Sprintf("*%s* has joined.", u.Username))
		return nil
	})
	return conn, err
}

// RemoveConnection drops a connection by id. The owner leaving hands ownership to the first remaining participant.
func (r *Room) RemoveConnection(id domain.ConnectionID) {
	r.mutate(func() {
		if idx := r.connectionIndex(func(c *Connection) bool { return c.id == id }); idx >= 0 {
			r.removeConnectionLocked(idx)
		}
	})
}

// CloseUserConnection is the explicit leave path.
func (r *Room) CloseUserConnection(userID domain.UserID) {
	r.mutate(func() {
		if idx := r.connectionIndex(func(c *Connection) bool { return c.user.ID == userID }); idx >= 0 {
			r.removeConnectionLocked(idx)
		}
	})
}

func (r *Room) SetOwner(userID domain.UserID, publicID domain.PublicUserID, username string) {
	r.mutate(func() {
		r.setOwnerLocked(userID, publicID, username)
	})
}

// PostUserVote records a vote for one of the room's default options.
// Votes aimed at a round other than the latest one are ignored.
func (r *Room) PostUserVote(userID domain.UserID, roundID domain.RoundID, optionID domain.OptionID) error {
	return r.mutateErr(func() error {
		conn := r.findUserConnection(userID)
		if conn == nil {
			return domain.NotFound("RoomConnection for user %s not found.", userID)
		}
		if r.lastRound().id != roundID {
			return nil
		}
		idx := slices.IndexFunc(r.defaultOptions, func(o domain.RoundOption) bool { return o.ID == optionID })
		if idx < 0 {
			return domain.NotFound("Option with id %s not found.", optionID)
		}
		r.addVoteLocked(conn, r.defaultOptions[idx].Name)
		return nil
	})
}

func (r *Room) StartNewRound(userID domain.UserID) {
	r.mutate(func() {
		if last := r.lastRound(); last.inProgress {
			r.finishRoundLocked(last)
		}
		r.appendRoundLocked()
		if name := r.usernameOf(userID); name != "" {
			r.addSystemMessage(fmt.Sprintf("New round was started by %s.", name))
		} else {
			r.addSystemMessage("New round was started.")
		}
		r.broadcast(protocol.NewRoomUpdate(r.viewLocked()))
	})
}

// FinishLastRound freezes the live round's statistics and opens its successor.
func (r *Room) FinishLastRound() {
	r.mutate(func() {
		last := r.lastRound()
		if !last.inProgress {
			return
		}
		r.finishRoundLocked(last)
		r.broadcast(protocol.NewRoundUpdate(last.view()))
		r.appendRoundLocked()
	})
}

// CancelLastRound discards the live round without statistics and opens a fresh one.
func (r *Room) CancelLastRound(userID domain.UserID) {
	r.mutate(func() {
		if r.lastRound().inProgress {
			r.rounds = r.rounds[:len(r.rounds)-1]
		}
		if len(r.rounds) == 0 || !r.lastRound().inProgress {
			r.rounds = append(r.rounds, newRound(r.defaultOptions))
		}
		if name := r.usernameOf(userID); name != "" {
			r.addSystemMessage(fmt.Sprintf("Round was cancelled by %s.", name))
		} else {
			r.addSystemMessage("Round was cancelled.")
		}
		r.broadcast(protocol.NewRoomUpdate(r.viewLocked()))
	})
}

func (r *Room) SetDefaultOptions(names []string) {
	r.mutate(func() {
		r.setDefaultOptionsLocked(names)
	})
}

// PostMessage appends a chat message or runs a slash command.
func (r *Room) PostMessage(userID domain.UserID, text string) {
	if cmd, ok := parseChatCommand(text); ok {
		r.runChatCommand(userID, cmd)
		return
	}
	r.mutate(func() {
		conn := r.findUserConnection(userID)
		if conn == nil {
			return
		}
		r.chat = append(r.chat, domain.ChatMessage{
			Text:           html.EscapeString(text),
			AuthorPublicID: conn.user.PublicID,
			SentAt:         r.opts.Clock(),
		})
		r.broadcast(protocol.NewChatUpdate(r.chatViews()))
	})
}

func (r *Room) View() protocol.RoomView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.viewLocked()
}

func (r *Room) Participants() []protocol.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.participantsLocked()
}

// Dispose sends room:closed to every socket and detaches all connections.
// A disposed room ignores further mutations.
func (r *Room) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return
	}
	r.disposed = true
	frame, err := encode(protocol.NewRoomClosed(r.id))
	for _, c := range r.connections {
		if err == nil {
			c.sendLocked(frame)
		}
		c.sockets = nil
	}
	r.connections = nil
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Msg("room disposed")
}

func (r *Room) mutate(fn func()) {
	_ = r.mutateErr(func() error {
		fn()
		return nil
	})
}

func (r *Room) mutateErr(fn func() error) error {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return domain.NotFound("Room with id %s not found.", r.id)
	}
	r.lastActivity = r.opts.Clock()
	err := fn()
	r.mu.Unlock()
	r.opts.Persister.Schedule(r)
	return err
}

// lastRound relies on rounds never being empty outside CancelLastRound.
func (r *Room) lastRound() *Round {
	return r.rounds[len(r.rounds)-1]
}

func (r *Room) appendRoundLocked() {
	r.rounds = append(r.rounds, newRound(r.defaultOptions))
	r.broadcast(protocol.NewRoomUpdate(r.viewLocked()))
}

func (r *Room) finishRoundLocked(round *Round) {
	round.finish()
	r.opts.Usage.Record(domain.UsageRoundCompleted, 1)
}

func (r *Room) addVoteLocked(conn *Connection, vote string) {
	last := r.lastRound()
	if !last.inProgress {
		return
	}
	last.addResult(domain.RoundResult{
		UserID:       conn.user.ID,
		PublicUserID: conn.user.PublicID,
		Username:     conn.user.Username,
		Vote:         vote,
	})
	r.opts.Usage.Record(domain.UsageVotesPlaced, 1)
	r.broadcast(protocol.NewRoundUpdate(last.view()))
}

func (r *Room) setOwnerLocked(userID domain.UserID, publicID domain.PublicUserID, username string) {
	r.ownerID = userID
	r.ownerPublicID = publicID
	r.ownerName = username
	r.broadcast(protocol.NewOwnerChange(publicID, username))
}

func (r *Room) setDefaultOptionsLocked(names []string) {
	options := domain.NewRoundOptions(names)
	r.defaultOptions = options
	if last := r.lastRound(); last.inProgress && last.HasResults() {
		last.setOptions(options)
	}
	r.broadcast(protocol.NewRoomUpdate(r.viewLocked()))
}

func (r *Room) removeConnectionLocked(idx int) {
	conn := r.connections[idx]
	r.connections = slices.Delete(r.connections, idx, idx+1)
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("conn", string(conn.id)).Msg("connection removed")
	r.broadcastParticipants()
	r.addSystemMessage(fmt.Sprintf("*%s* has left.", conn.user.Username))
	if conn.user.ID == r.ownerID && len(r.connections) > 0 {
		next := r.connections[0]
		r.setOwnerLocked(next.user.ID, next.user.PublicID, next.user.Username)
	}
}

func (r *Room) addSystemMessage(text string) {
	r.chat = append(r.chat, domain.ChatMessage{Text: text, SentAt: r.opts.Clock()})
	r.broadcast(protocol.NewChatUpdate(r.chatViews()))
}

func (r *Room) findUserConnection(userID domain.UserID) *Connection {
	if idx := r.connectionIndex(func(c *Connection) bool { return c.user.ID == userID }); idx >= 0 {
		return r.connections[idx]
	}
	return nil
}

func (r *Room) connectionIndex(match func(*Connection) bool) int {
	return slices.IndexFunc(r.connections, match)
}

func (r *Room) usernameOf(userID domain.UserID) string {
	if c := r.findUserConnection(userID); c != nil {
		return c.user.Username
	}
	return ""
}

func (r *Room) broadcastParticipants() {
	r.broadcast(protocol.NewParticipantsChange(r.participantsLocked()))
}

func (r *Room) broadcast(msg any) {
	frame, err := encode(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "core.room").Str("room", string(r.id)).Msg("broadcast marshal")
		return
	}
	for _, c := range r.connections {
		c.sendLocked(frame)
	}
}

func (r *Room) viewLocked() protocol.RoomView {
	rounds := make([]protocol.RoundView, 0, len(r.rounds))
	for _, rd := range r.rounds {
		rounds = append(rounds, rd.view())
	}
	return protocol.RoomView{
		OwnerPublicID:  r.ownerPublicID,
		OwnerName:      r.ownerName,
		RoomID:         r.id,
		ChatMessages:   r.chatViews(),
		Rounds:         rounds,
		Participants:   r.participantsLocked(),
		DefaultOptions: slices.Clone(r.defaultOptions),
	}
}

func (r *Room) participantsLocked() []protocol.Participant {
	out := make([]protocol.Participant, 0, len(r.connections))
	for _, c := range r.connections {
		out = append(out, c.participantLocked())
	}
	return out
}

func (r *Room) chatViews() []protocol.ChatMessageView {
	out := make([]protocol.ChatMessageView, 0, len(r.chat))
	for _, m := range r.chat {
		v := protocol.ChatMessageView{
			Text:   m.Text,
			SentAt: m.SentAt.UTC().Format(protocol.SentAtLayout),
		}
		if !m.IsSystem() {
			v.PublicUserID = m.AuthorPublicID
			for _, c := range r.connections {
				if c.user.PublicID == m.AuthorPublicID {
					v.Username = c.user.Username
					break
				}
			}
		}
		out = append(out, v)
	}
	return out
}

func encode(msg any) (Frame, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}
