package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Poker/internal/domain"
	"go.uber.org/mock/gomock"
)

func TestTrackerWritesEventsInOrder(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	done := make(chan struct{})

	gomock.InOrder(
		sink.EXPECT().RecordUsage(gomock.Any(), domain.UsageRoomCreated, 1, gomock.Any()).Return(nil),
		sink.EXPECT().RecordUsage(gomock.Any(), domain.UsageConnectionOpened, 1, gomock.Any()).Return(errors.New("disk full")),
		sink.EXPECT().RecordUsage(gomock.Any(), domain.UsageConnectionOpened, -1, gomock.Any()).
			DoAndReturn(func(context.Context, domain.UsageKind, int, time.Time) error {
				close(done)
				return nil
			}),
	)

	tr := NewTracker(sink, 8)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- tr.Run(ctx) }()

	tr.Record(domain.UsageRoomCreated, 1)
	tr.Record(domain.UsageConnectionOpened, 1)
	tr.Record(domain.UsageConnectionOpened, -1)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("events were not written")
	}
	cancel()
	if err := <-stopped; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestTrackerDropsWhenFull(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	sink.EXPECT().RecordUsage(gomock.Any(), domain.UsageVotesPlaced, 1, gomock.Any()).Return(nil).Times(1)

	tr := NewTracker(sink, 1)
	tr.Record(domain.UsageVotesPlaced, 1)
	tr.Record(domain.UsageVotesPlaced, 1)
	if got := tr.Dropped(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}

	// a canceled context drains the queue before returning
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tr.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

type fixedLive struct{ rooms, users int }

func (f fixedLive) RoomCount() int { return f.rooms }
func (f fixedLive) UserCount() int { return f.users }

func TestCollect(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	counter := NewMockCounter(ctrl)
	now := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	since := now.Add(-Window)

	counter.EXPECT().CountUsage(gomock.Any(), domain.UsageRoomCreated, since).Return(7, nil)
	counter.EXPECT().CountUsage(gomock.Any(), domain.UsageConnectionOpened, since).Return(21, nil)
	counter.EXPECT().CountUsage(gomock.Any(), domain.UsageRoundCompleted, since).Return(12, nil)
	counter.EXPECT().CountUsage(gomock.Any(), domain.UsageVotesPlaced, since).Return(80, nil)

	got, err := Collect(context.Background(), fixedLive{rooms: 2, users: 5}, counter, now)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	want := Stats{ActiveRooms: 2, ActiveUsers: 5, ThisMonthRoomCount: 7, ThisMonthUserCount: 21, ThisMonthRounds: 12, ThisMonthVotes: 80}
	if got != want {
		t.Fatalf("stats = %+v, want %+v", got, want)
	}
}

func TestCollectPropagatesErrors(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	counter := NewMockCounter(ctrl)
	boom := errors.New("boom")
	counter.EXPECT().CountUsage(gomock.Any(), gomock.Any(), gomock.Any()).Return(0, boom)

	if _, err := Collect(context.Background(), fixedLive{}, counter, time.Now()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}
