package signal

import (
	"time"

	"github.com/dkeye/Poker/internal/core"
	"github.com/dkeye/Poker/internal/domain"
)

// session is the per-socket state. Only the socket's read goroutine touches it.
type session struct {
	conn   *WsSignalConn
	dedup  *dedupCache
	roomID domain.RoomID
	unbind func()
}

func newSession(conn *WsSignalConn, ttl time.Duration) *session {
	return &session{
		conn:  conn,
		dedup: newDedupCache(ttl, time.Now),
	}
}

func (s *session) bind(roomID domain.RoomID, rc *core.Connection) {
	s.detach()
	s.roomID = roomID
	s.unbind = rc.AddWebSocket(s.conn)
}

func (s *session) detach() {
	if s.unbind != nil {
		s.unbind()
	}
	s.unbind = nil
	s.roomID = ""
}

// dedupCache remembers message ids for ttl so retransmissions are applied once.
type dedupCache struct {
	ttl       time.Duration
	now       func() time.Time
	seen      map[string]time.Time
	lastSweep time.Time
}

func newDedupCache(ttl time.Duration, now func() time.Time) *dedupCache {
	return &dedupCache{
		ttl:       ttl,
		now:       now,
		seen:      make(map[string]time.Time),
		lastSweep: now(),
	}
}

// Seen reports whether id arrived within ttl and remembers it otherwise.
func (d *dedupCache) Seen(id string) bool {
	now := d.now()
	if now.Sub(d.lastSweep) >= d.ttl {
		d.sweep(now)
	}
	if at, ok := d.seen[id]; ok && now.Sub(at) < d.ttl {
		return true
	}
	d.seen[id] = now
	return false
}

func (d *dedupCache) sweep(now time.Time) {
	for id, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, id)
		}
	}
	d.lastSweep = now
}

func (d *dedupCache) Len() int { return len(d.seen) }
