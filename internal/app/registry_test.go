package app

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/dkeye/Poker/internal/domain"
	"github.com/dkeye/Poker/internal/protocol"
)

func TestCreateRoomCapacity(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	reg := NewRegistry(RegistryOptions{MaxRooms: 2, Clock: clock.Now})

	for i := 0; i < 2; i++ {
		if _, err := reg.CreateRoom("owner", "Owner"); err != nil {
			t.Fatalf("CreateRoom %d: %v", i, err)
		}
	}
	if _, err := reg.CreateRoom("owner", "Owner"); !errors.Is(err, ErrCapacity) {
		t.Fatalf("err = %v, want ErrCapacity while no room is stale", err)
	}
	if got := reg.RoomCount(); got != 2 {
		t.Fatalf("rooms = %d, want 2", got)
	}

	clock.Advance(6 * time.Minute)
	room, err := reg.CreateRoom("owner", "Owner")
	if err != nil {
		t.Fatalf("CreateRoom after rooms went stale: %v", err)
	}
	if got := reg.RoomCount(); got != 1 {
		t.Fatalf("rooms = %d, want only the new one", got)
	}
	if len(room.ID()) != domain.RoomIDLen {
		t.Fatalf("room id %q has length %d", room.ID(), len(room.ID()))
	}
}

func TestGetRoomNotFound(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(RegistryOptions{})
	if _, err := reg.GetRoom("missing1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestRemoveRoomNotifiesSockets(t *testing.T) {
	t.Parallel()

	persister := &recordingPersister{}
	reg := NewRegistry(RegistryOptions{Persister: persister})
	room, err := reg.CreateRoom("owner", "Owner")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	sock := connectSocket(t, room, "owner")

	reg.RemoveRoom(room.ID())

	if !sock.sawType(t, protocol.TypeRoomClosed) {
		t.Fatal("socket did not receive room:closed")
	}
	if _, err := reg.GetRoom(room.ID()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetRoom after remove err = %v", err)
	}
	if !slices.Contains(persister.disposed, room.ID()) {
		t.Fatal("persisted snapshot was not disposed")
	}

	reg.RemoveRoom(room.ID())
	if len(persister.disposed) != 1 {
		t.Fatalf("second remove disposed again: %v", persister.disposed)
	}
}

func TestCloseCommandRemovesRoom(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(RegistryOptions{})
	room, err := reg.CreateRoom("owner", "Owner")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	sock := connectSocket(t, room, "owner")

	room.PostMessage("owner", "/close")

	if reg.RoomCount() != 0 {
		t.Fatal("/close left the room registered")
	}
	if !sock.sawType(t, protocol.TypeRoomClosed) {
		t.Fatal("socket did not receive room:closed")
	}
}

func TestRunSweepsStaleRooms(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	reg := NewRegistry(RegistryOptions{SweepInterval: 5 * time.Millisecond, Clock: clock.Now})
	idle, _ := reg.CreateRoom("a", "A")
	busy, _ := reg.CreateRoom("b", "B")
	connectSocket(t, busy, "b")
	clock.Advance(10 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx) }()

	eventually(t, func() bool { return reg.RoomCount() == 1 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := reg.GetRoom(idle.ID()); err == nil {
		t.Fatal("idle room survived the sweep")
	}
	if _, err := reg.GetRoom(busy.ID()); err != nil {
		t.Fatalf("room with an open socket was swept: %v", err)
	}
}

func TestUserCount(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(RegistryOptions{})
	r1, _ := reg.CreateRoom("a", "A")
	r2, _ := reg.CreateRoom("b", "B")
	connectSocket(t, r1, "a")
	connectSocket(t, r1, "c")
	s := connectSocket(t, r2, "b")
	s.Close()

	if got := reg.UserCount(); got != 2 {
		t.Fatalf("users = %d, want 2", got)
	}
}
