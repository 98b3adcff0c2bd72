package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Poker/internal/core"
	"github.com/dkeye/Poker/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrCapacity = errors.New("too many rooms")

const (
	DefaultMaxRooms      = 500
	DefaultSweepInterval = time.Minute
)

// RoomPersister is the registry's view of the persistence bridge.
type RoomPersister interface {
	core.Persister
	Dispose(id domain.RoomID)
}

type nopRoomPersister struct{}

func (nopRoomPersister) Schedule(*core.Room)  {}
func (nopRoomPersister) Dispose(domain.RoomID) {}

type RegistryOptions struct {
	MaxRooms      int
	SweepInterval time.Duration
	StaleAfter    time.Duration
	Clock         func() time.Time
	Persister     RoomPersister
	Usage         core.UsageRecorder
}

// Registry owns every live room in the process.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*core.Room
	opts  RegistryOptions
}

func NewRegistry(opts RegistryOptions) *Registry {
	if opts.MaxRooms <= 0 {
		opts.MaxRooms = DefaultMaxRooms
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Persister == nil {
		opts.Persister = nopRoomPersister{}
	}
	return &Registry{
		rooms: make(map[domain.RoomID]*core.Room),
		opts:  opts,
	}
}

func (r *Registry) roomOptions() core.Options {
	return core.Options{
		Persister:  r.opts.Persister,
		Usage:      r.opts.Usage,
		Clock:      r.opts.Clock,
		StaleAfter: r.opts.StaleAfter,
		OnClose:    r.RemoveRoom,
	}
}

// CreateRoom registers a new room. At the ceiling stale rooms are purged once
// before giving up with ErrCapacity.
func (r *Registry) CreateRoom(ownerID domain.UserID, ownerName string) (*core.Room, error) {
	if r.RoomCount() >= r.opts.MaxRooms {
		purged := r.PurgeStale()
		log.Info().Str("module", "app.registry").Int("purged", purged).Msg("room ceiling reached")
	}

	r.mu.Lock()
	if len(r.rooms) >= r.opts.MaxRooms {
		r.mu.Unlock()
		return nil, ErrCapacity
	}
	id := domain.NewRoomID()
	for _, taken := r.rooms[id]; taken; _, taken = r.rooms[id] {
		id = domain.NewRoomID()
	}
	room := core.NewRoom(id, ownerID, ownerName, r.roomOptions())
	r.rooms[id] = room
	r.mu.Unlock()

	if r.opts.Usage != nil {
		r.opts.Usage.Record(domain.UsageRoomCreated, 1)
	}
	r.opts.Persister.Schedule(room)
	log.Info().Str("module", "app.registry").Str("room", string(id)).Str("owner", string(ownerID)).Msg("room created")
	return room, nil
}

func (r *Registry) GetRoom(id domain.RoomID) (*core.Room, error) {
	r.mu.RLock()
	room, ok := r.rooms[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.NotFound("Room with id %s not found.", id)
	}
	return room, nil
}

// Put registers an existing room, e.g. one restored from storage.
func (r *Registry) Put(room *core.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.ID()] = room
	log.Info().Str("module", "app.registry").Str("room", string(room.ID())).Msg("room registered")
}

// Restore rebuilds a room from its snapshot and registers it.
func (r *Registry) Restore(s core.Snapshot) (*core.Room, error) {
	room, err := core.RestoreRoom(s, r.roomOptions())
	if err != nil {
		return nil, err
	}
	r.Put(room)
	return room, nil
}

// RemoveRoom unregisters the room, notifies its sockets and deletes its snapshot.
func (r *Registry) RemoveRoom(id domain.RoomID) {
	r.mu.Lock()
	room, ok := r.rooms[id]
	delete(r.rooms, id)
	r.mu.Unlock()
	if !ok {
		return
	}
	room.Dispose()
	r.opts.Persister.Dispose(id)
	log.Info().Str("module", "app.registry").Str("room", string(id)).Msg("room removed")
}

// PurgeStale removes every stale room and reports how many went away.
func (r *Registry) PurgeStale() int {
	var stale []domain.RoomID
	r.mu.RLock()
	for id, room := range r.rooms {
		if room.IsStale() {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()
	for _, id := range stale {
		r.RemoveRoom(id)
	}
	return len(stale)
}

func (r *Registry) Rooms() []*core.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// UserCount counts participants currently holding an open socket.
func (r *Registry) UserCount() int {
	n := 0
	for _, room := range r.Rooms() {
		n += room.ActiveConnectionCount()
	}
	return n
}

// Run sweeps stale rooms until ctx is done.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.registry").Msg("sweeper stopped")
			return nil
		case <-ticker.C:
			if n := r.PurgeStale(); n > 0 {
				log.Info().Str("module", "app.registry").Int("purged", n).Msg("stale rooms purged")
			}
		}
	}
}
