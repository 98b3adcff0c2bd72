package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dkeye/Poker/internal/core"
	"github.com/dkeye/Poker/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPersistDelay = 25 * time.Millisecond
	persistTimeout      = 5 * time.Second
)

// SnapshotStore is id-keyed blob storage for room snapshots.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, id string) ([]byte, error)
	PutSnapshot(ctx context.Context, id string, blob []byte) error
	DeleteSnapshot(ctx context.Context, id string) error
	ListSnapshots(ctx context.Context) ([][]byte, error)
}

type pendingWrite struct {
	timer *time.Timer
	room  *core.Room
}

// Persister coalesces room mutations into one trailing snapshot write per room.
type Persister struct {
	store SnapshotStore
	delay time.Duration

	mu      sync.Mutex
	pending map[domain.RoomID]pendingWrite
	closed  bool

	// writeMu keeps snapshot and write of one flush together so an older
	// snapshot never lands after a newer one.
	writeMu sync.Mutex
}

func NewPersister(store SnapshotStore, delay time.Duration) *Persister {
	if delay <= 0 {
		delay = DefaultPersistDelay
	}
	return &Persister{
		store:   store,
		delay:   delay,
		pending: make(map[domain.RoomID]pendingWrite),
	}
}

func (p *Persister) Schedule(room *core.Room) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if _, ok := p.pending[room.ID()]; ok {
		return
	}
	p.pending[room.ID()] = pendingWrite{
		room:  room,
		timer: time.AfterFunc(p.delay, func() { p.fire(room) }),
	}
}

func (p *Persister) fire(room *core.Room) {
	p.mu.Lock()
	delete(p.pending, room.ID())
	p.mu.Unlock()
	p.write(room)
}

func (p *Persister) write(room *core.Room) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	snap, ok := room.Snapshot()
	if !ok {
		return
	}
	blob, err := json.Marshal(snap)
	if err != nil {
		log.Error().Err(err).Str("module", "app.persist").Str("room", string(room.ID())).Msg("snapshot marshal")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := p.store.PutSnapshot(ctx, string(room.ID()), blob); err != nil {
		log.Error().Err(err).Str("module", "app.persist").Str("room", string(room.ID())).Msg("snapshot write")
		return
	}
	log.Debug().Str("module", "app.persist").Str("room", string(room.ID())).Int("bytes", len(blob)).Msg("snapshot written")
}

// Dispose drops any pending write and deletes the stored snapshot.
func (p *Persister) Dispose(id domain.RoomID) {
	p.mu.Lock()
	if pw, ok := p.pending[id]; ok {
		pw.timer.Stop()
		delete(p.pending, id)
	}
	p.mu.Unlock()

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := p.store.DeleteSnapshot(ctx, string(id)); err != nil {
		log.Error().Err(err).Str("module", "app.persist").Str("room", string(id)).Msg("snapshot delete")
	}
}

// Close writes every pending snapshot now and stops accepting new ones.
func (p *Persister) Close() {
	p.mu.Lock()
	p.closed = true
	pending := make([]*core.Room, 0, len(p.pending))
	for id, pw := range p.pending {
		if pw.timer.Stop() {
			pending = append(pending, pw.room)
		}
		delete(p.pending, id)
	}
	p.mu.Unlock()

	for _, room := range pending {
		p.write(room)
	}
	log.Info().Str("module", "app.persist").Int("flushed", len(pending)).Msg("persister closed")
}

// Restore loads every stored snapshot into reg. Unreadable snapshots are skipped.
func (p *Persister) Restore(ctx context.Context, reg *Registry) (int, error) {
	blobs, err := p.store.ListSnapshots(ctx)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, blob := range blobs {
		var snap core.Snapshot
		if err := json.Unmarshal(blob, &snap); err != nil {
			log.Warn().Err(err).Str("module", "app.persist").Msg("skip unreadable snapshot")
			continue
		}
		if _, err := reg.Restore(snap); err != nil {
			log.Warn().Err(err).Str("module", "app.persist").Str("room", string(snap.ID)).Msg("skip snapshot")
			continue
		}
		restored++
	}
	log.Info().Str("module", "app.persist").Int("rooms", restored).Msg("rooms restored")
	return restored, nil
}
