package core

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Poker/internal/domain"
	"github.com/dkeye/Poker/internal/protocol"
)

var errSocketFull = errors.New("socket full")

type fakeSocket struct {
	mu     sync.Mutex
	open   bool
	full   bool
	frames []Frame
}

func newFakeSocket() *fakeSocket { return &fakeSocket{open: true} }

func (s *fakeSocket) TrySend(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return errSocketFull
	}
	s.frames = append(s.frames, append(Frame(nil), f...))
	return nil
}

func (s *fakeSocket) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *fakeSocket) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
}

func (s *fakeSocket) events(t *testing.T) []protocol.Event {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Event, 0, len(s.frames))
	for _, f := range s.frames {
		ev, err := protocol.DecodeEvent(f)
		if err != nil {
			t.Fatalf("DecodeEvent(%s): %v", f, err)
		}
		out = append(out, ev)
	}
	return out
}

func (s *fakeSocket) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
}

// lastEvent returns the most recent event of the given type.
func lastEvent[T protocol.Event](t *testing.T, s *fakeSocket) T {
	t.Helper()
	evs := s.events(t)
	for i := len(evs) - 1; i >= 0; i-- {
		if ev, ok := evs[i].(T); ok {
			return ev
		}
	}
	var zero T
	t.Fatalf("no %T among %d events", zero, len(evs))
	return zero
}

type countingPersister struct {
	mu    sync.Mutex
	calls int
}

func (p *countingPersister) Schedule(*Room) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
}

func (p *countingPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type countingUsage struct {
	mu     sync.Mutex
	totals map[domain.UsageKind]int
}

func (u *countingUsage) Record(kind domain.UsageKind, delta int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.totals == nil {
		u.totals = make(map[domain.UsageKind]int)
	}
	u.totals[kind] += delta
}

func (u *countingUsage) total(kind domain.UsageKind) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.totals[kind]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func user(id string) domain.User {
	return domain.User{ID: domain.UserID(id), PublicID: domain.PublicUserID("pub-" + id), Username: id}
}

// joinedRoom creates a room owned by "alice" with alice connected through one socket.
func joinedRoom(t *testing.T, opts Options) (*Room, *Connection, *fakeSocket) {
	t.Helper()
	room := NewRoom("room0001", "alice", "alice", opts)
	conn, err := room.CreateConnection(user("alice"))
	if err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}
	room.SetOwner(conn.UserID(), conn.PublicUserID(), conn.Username())
	sock := newFakeSocket()
	conn.AddWebSocket(sock)
	return room, conn, sock
}

func join(t *testing.T, room *Room, id string) (*Connection, *fakeSocket) {
	t.Helper()
	conn, err := room.CreateConnection(user(id))
	if err != nil {
		t.Fatalf("CreateConnection(%s): %v", id, err)
	}
	sock := newFakeSocket()
	conn.AddWebSocket(sock)
	return conn, sock
}

func assertSingleLiveRound(t *testing.T, room *Room) {
	t.Helper()
	view := room.View()
	live := 0
	for i, rd := range view.Rounds {
		if rd.IsInProgress {
			live++
			if i != len(view.Rounds)-1 {
				t.Fatalf("round %d in progress but not last", i)
			}
		}
	}
	if live != 1 {
		t.Fatalf("live rounds = %d, want 1", live)
	}
}
