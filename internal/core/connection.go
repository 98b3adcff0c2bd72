package core

import (
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Poker/internal/domain"
	"github.com/dkeye/Poker/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Connection is one participant's presence in a room. A participant may hold
// several sockets (tabs); the connection lives until an explicit leave.
// Socket bookkeeping is guarded by the owning room's lock.
type Connection struct {
	room      *Room
	id        domain.ConnectionID
	user      domain.User
	createdAt time.Time
	sockets   []Socket
}

func newConnection(room *Room, u domain.User, now time.Time) *Connection {
	return &Connection{
		room:      room,
		id:        domain.NewConnectionID(),
		user:      u,
		createdAt: now,
	}
}

func (c *Connection) ID() domain.ConnectionID { return c.id }

func (c *Connection) UserID() domain.UserID { return c.user.ID }

func (c *Connection) PublicUserID() domain.PublicUserID { return c.user.PublicID }

func (c *Connection) Username() string { return c.user.Username }

func (c *Connection) CreatedAt() time.Time { return c.createdAt }

func (c *Connection) IsActive() bool {
	c.room.mu.RLock()
	defer c.room.mu.RUnlock()
	return c.isActiveLocked()
}

// AddWebSocket attaches s and returns the function that detaches it.
// Attaching to a disposed room sends room:closed instead.
func (c *Connection) AddWebSocket(s Socket) (detach func()) {
	r := c.room
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		if frame, err := encode(protocol.NewRoomClosed(r.id)); err == nil {
			_ = s.TrySend(frame)
		}
		return func() {}
	}
	c.sockets = append(c.sockets, s)
	r.broadcastParticipants()
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			c.sockets = slices.DeleteFunc(c.sockets, func(x Socket) bool { return x == s })
			if !r.disposed {
				r.broadcastParticipants()
			}
		})
	}
}

// PropagateMessage sends msg to every open socket of this connection.
func (c *Connection) PropagateMessage(msg any) {
	frame, err := encode(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "core.connection").Msg("propagate marshal")
		return
	}
	c.room.mu.RLock()
	defer c.room.mu.RUnlock()
	c.sendLocked(frame)
}

// Close notifies this connection's sockets that the room is gone for them and leaves the room.
func (c *Connection) Close() {
	r := c.room
	r.mutate(func() {
		if frame, err := encode(protocol.NewRoomClosed(r.id)); err == nil {
			c.sendLocked(frame)
		}
		if idx := r.connectionIndex(func(x *Connection) bool { return x == c }); idx >= 0 {
			r.removeConnectionLocked(idx)
		}
	})
}

func (c *Connection) isActiveLocked() bool {
	for _, s := range c.sockets {
		if s.IsOpen() {
			return true
		}
	}
	return false
}

// sendLocked skips closed sockets. A socket that cannot take the frame is kicked;
// its client reconnects and receives a full snapshot.
func (c *Connection) sendLocked(frame Frame) {
	for _, s := range c.sockets {
		if !s.IsOpen() {
			continue
		}
		if err := s.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "core.connection").Str("conn", string(c.id)).Msg("socket kicked")
			s.Close()
		}
	}
}

func (c *Connection) participantLocked() protocol.Participant {
	return protocol.Participant{
		IsActive: c.isActiveLocked(),
		PublicID: c.user.PublicID,
		Username: c.user.Username,
	}
}
