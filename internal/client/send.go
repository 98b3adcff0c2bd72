package client

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dkeye/Poker/internal/domain"
	"github.com/dkeye/Poker/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Send delivers cmd at least once: it is retransmitted on a growing schedule
// until the server acknowledges its messageID or MaxAttempts is spent.
// Commands without a messageID are written once.
func (c *Conn) Send(ctx context.Context, cmd protocol.Command) error {
	id := cmd.AckID()
	if id == "" {
		return c.write(cmd)
	}

	acked := c.await(id)
	defer c.forget(id)

	schedule := c.retrySchedule()
	for attempt := 1; ; attempt++ {
		if err := c.write(cmd); err != nil {
			log.Debug().Err(err).Str("module", "client").Str("message", id).Int("attempt", attempt).Msg("send deferred")
		}
		wait := time.NewTimer(schedule.NextBackOff())
		select {
		case <-acked:
			wait.Stop()
			return nil
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-c.ctx.Done():
			wait.Stop()
			return ErrClosed
		case <-wait.C:
		}
		if attempt >= c.opts.MaxAttempts {
			return ErrNotAcknowledged
		}
	}
}

func (c *Conn) retrySchedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryInitial
	b.Multiplier = retryMultiplier
	b.MaxInterval = c.opts.RetryMax
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

func (c *Conn) await(id string) <-chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	return ch
}

func (c *Conn) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Conn) resolve(id string) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Join connects the user to roomID and remembers the parameters for rejoining after a drop.
func (c *Conn) Join(ctx context.Context, roomID domain.RoomID, user domain.User) error {
	cmd := protocol.Connect{
		Ref:          protocol.NewRef(protocol.TypeRoomConnect, roomID, user.ID),
		PublicUserID: user.PublicID,
		Username:     user.Username,
	}
	if err := c.Send(ctx, &cmd); err != nil {
		return err
	}
	c.mu.Lock()
	c.joinParams = &cmd
	c.mu.Unlock()
	return nil
}

// Leave forgets the join parameters before telling the server, so a later drop does not rejoin.
func (c *Conn) Leave(ctx context.Context) error {
	c.mu.Lock()
	params := c.joinParams
	c.joinParams = nil
	c.mu.Unlock()
	if params == nil {
		return nil
	}
	return c.Send(ctx, &protocol.Disconnect{Ref: protocol.NewRef(protocol.TypeRoomDisconnect, params.RoomID, params.UserID)})
}

// ref builds a command header for the joined room.
func (c *Conn) ref(typ string) (protocol.Ref, error) {
	c.mu.Lock()
	params := c.joinParams
	c.mu.Unlock()
	if params == nil {
		return protocol.Ref{}, ErrNotConnected
	}
	return protocol.NewRef(typ, params.RoomID, params.UserID), nil
}

func (c *Conn) Vote(ctx context.Context, roundID domain.RoundID, option domain.OptionID) error {
	ref, err := c.ref(protocol.TypeAddVote)
	if err != nil {
		return err
	}
	return c.Send(ctx, &protocol.AddVote{Ref: ref, RoundID: roundID, OptionRef: option})
}

func (c *Conn) PostMessage(ctx context.Context, text string) error {
	ref, err := c.ref(protocol.TypePostMessage)
	if err != nil {
		return err
	}
	return c.Send(ctx, &protocol.PostMessage{Ref: ref, Text: text})
}

func (c *Conn) FinishRound(ctx context.Context) error {
	ref, err := c.ref(protocol.TypeFinishRound)
	if err != nil {
		return err
	}
	return c.Send(ctx, &protocol.FinishRound{Ref: ref})
}
