package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Poker/internal/core"
	"github.com/dkeye/Poker/internal/domain"
	"github.com/dkeye/Poker/internal/protocol"
)

type memStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	puts  map[string]int
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[string][]byte), puts: make(map[string]int)}
}

func (s *memStore) GetSnapshot(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[id]
	if !ok {
		return nil, domain.NotFound("snapshot %s not found", id)
	}
	return b, nil
}

func (s *memStore) PutSnapshot(_ context.Context, id string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id] = blob
	s.puts[id]++
	return nil
}

func (s *memStore) DeleteSnapshot(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, id)
	return nil
}

func (s *memStore) ListSnapshots(context.Context) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, 0, len(s.blobs))
	for _, b := range s.blobs {
		out = append(out, b)
	}
	return out, nil
}

func (s *memStore) putCount(id domain.RoomID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts[string(id)]
}

func (s *memStore) has(id domain.RoomID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[string(id)]
	return ok
}

type recordingPersister struct {
	mu       sync.Mutex
	disposed []domain.RoomID
}

func (p *recordingPersister) Schedule(*core.Room) {}

func (p *recordingPersister) Dispose(id domain.RoomID) {
	p.mu.Lock()
	p.disposed = append(p.disposed, id)
	p.mu.Unlock()
}

type testSocket struct {
	mu     sync.Mutex
	open   bool
	frames []core.Frame
}

func (s *testSocket) TrySend(f core.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *testSocket) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *testSocket) Close() {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
}

func (s *testSocket) sawType(t *testing.T, typ string) bool {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.frames {
		ev, err := protocol.DecodeEvent(f)
		if err != nil {
			t.Fatalf("DecodeEvent: %v", err)
		}
		if ev.EventType() == typ {
			return true
		}
	}
	return false
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func connectSocket(t *testing.T, room *core.Room, id string) *testSocket {
	t.Helper()
	conn, err := room.CreateConnection(domain.User{ID: domain.UserID(id), PublicID: domain.PublicUserID("pub-" + id), Username: id})
	if err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}
	sock := &testSocket{open: true}
	conn.AddWebSocket(sock)
	return sock
}
