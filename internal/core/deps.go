package core

import (
	"time"

	"github.com/dkeye/Poker/internal/domain"
)

const DefaultStaleAfter = 5 * time.Minute

// Persister is told about every room mutation and writes the room out later.
type Persister interface {
	Schedule(r *Room)
}

// UsageRecorder counts lifecycle events. Record must not block.
type UsageRecorder interface {
	Record(kind domain.UsageKind, delta int)
}

type Options struct {
	Persister  Persister
	Usage      UsageRecorder
	Clock      func() time.Time
	StaleAfter time.Duration
	// OnClose is invoked by the /close chat command without the room lock held.
	// The registry uses it to unregister and dispose the room.
	OnClose func(id domain.RoomID)
}

type nopPersister struct{}

func (nopPersister) Schedule(*Room) {}

type nopUsage struct{}

func (nopUsage) Record(domain.UsageKind, int) {}

func (o Options) withDefaults() Options {
	if o.Persister == nil {
		o.Persister = nopPersister{}
	}
	if o.Usage == nil {
		o.Usage = nopUsage{}
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = DefaultStaleAfter
	}
	return o
}
