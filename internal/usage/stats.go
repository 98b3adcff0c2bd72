package usage

import (
	"context"
	"time"

	"github.com/dkeye/Poker/internal/domain"
)

// Window is how far back the "this month" counters look.
const Window = 30 * 24 * time.Hour

// Live reports what is happening right now.
type Live interface {
	RoomCount() int
	UserCount() int
}

type Stats struct {
	ActiveRooms        int `json:"activeRooms"`
	ActiveUsers        int `json:"activeUsers"`
	ThisMonthRoomCount int `json:"thisMonthRoomCount"`
	ThisMonthUserCount int `json:"thisMonthUserCount"`
	ThisMonthRounds    int `json:"thisMonthRounds"`
	ThisMonthVotes     int `json:"thisMonthVotes"`
}

func Collect(ctx context.Context, live Live, counter Counter, now time.Time) (Stats, error) {
	since := now.Add(-Window)
	s := Stats{
		ActiveRooms: live.RoomCount(),
		ActiveUsers: live.UserCount(),
	}
	counts := []struct {
		kind domain.UsageKind
		dst  *int
	}{
		{domain.UsageRoomCreated, &s.ThisMonthRoomCount},
		{domain.UsageConnectionOpened, &s.ThisMonthUserCount},
		{domain.UsageRoundCompleted, &s.ThisMonthRounds},
		{domain.UsageVotesPlaced, &s.ThisMonthVotes},
	}
	for _, c := range counts {
		n, err := counter.CountUsage(ctx, c.kind, since)
		if err != nil {
			return Stats{}, err
		}
		*c.dst = n
	}
	return s, nil
}
