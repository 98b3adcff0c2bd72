// Package usage counts room lifecycle events and serves the aggregate stats.
package usage

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dkeye/Poker/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBuffer = 256
	writeTimeout  = 2 * time.Second
)

// Sink persists usage events.
type Sink interface {
	RecordUsage(ctx context.Context, kind domain.UsageKind, delta int, at time.Time) error
}

// Counter answers how many positive events of a kind happened since a moment.
type Counter interface {
	CountUsage(ctx context.Context, kind domain.UsageKind, since time.Time) (int, error)
}

type event struct {
	kind  domain.UsageKind
	delta int
	at    time.Time
}

// Tracker queues events and writes them from a single goroutine so callers never block on storage.
type Tracker struct {
	sink    Sink
	events  chan event
	clock   func() time.Time
	dropped atomic.Int64
}

func NewTracker(sink Sink, buffer int) *Tracker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Tracker{
		sink:   sink,
		events: make(chan event, buffer),
		clock:  time.Now,
	}
}

// Record enqueues an event; it is dropped when the queue is full.
func (t *Tracker) Record(kind domain.UsageKind, delta int) {
	select {
	case t.events <- event{kind: kind, delta: delta, at: t.clock()}:
	default:
		n := t.dropped.Add(1)
		log.Warn().Str("module", "usage").Str("kind", string(kind)).Int64("dropped", n).Msg("usage queue full")
	}
}

// Dropped reports how many events were lost to a full queue.
func (t *Tracker) Dropped() int64 { return t.dropped.Load() }

// Run writes queued events until ctx is done, then drains what is left.
func (t *Tracker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-t.events:
					t.write(e)
				default:
					log.Info().Str("module", "usage").Msg("tracker stopped")
					return nil
				}
			}
		case e := <-t.events:
			t.write(e)
		}
	}
}

func (t *Tracker) write(e event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := t.sink.RecordUsage(ctx, e.kind, e.delta, e.at); err != nil {
		log.Error().Err(err).Str("module", "usage").Str("kind", string(e.kind)).Msg("usage write")
	}
}
