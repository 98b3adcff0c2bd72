// Package client is the Go side of the room WebSocket protocol: at-least-once
// command delivery, automatic reconnect and rejoin, and a reconciled RoomState.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dkeye/Poker/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotAcknowledged = errors.New("message not acknowledged")
	ErrClosed          = errors.New("client closed")
	ErrNotConnected    = errors.New("socket not connected")
)

const (
	DefaultMaxAttempts   = 6
	DefaultRetryInitial  = 200 * time.Millisecond
	DefaultRetryMax      = 5 * time.Second
	DefaultReconnectMax  = 10 * time.Second
	DefaultReconnectFor  = 15 * time.Minute
	retryMultiplier      = 5
	reconnectMultiplier  = 2
	reconnectInitialWait = 100 * time.Millisecond
)

type Options struct {
	Dialer       *websocket.Dialer
	MaxAttempts  int
	RetryInitial time.Duration
	RetryMax     time.Duration
	ReconnectMax time.Duration
	ReconnectFor time.Duration
	// OnEvent sees every server message after it has been applied to the state.
	OnEvent func(protocol.Event)
}

func (o Options) withDefaults() Options {
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RetryInitial <= 0 {
		o.RetryInitial = DefaultRetryInitial
	}
	if o.RetryMax <= 0 {
		o.RetryMax = DefaultRetryMax
	}
	if o.ReconnectMax <= 0 {
		o.ReconnectMax = DefaultReconnectMax
	}
	if o.ReconnectFor <= 0 {
		o.ReconnectFor = DefaultReconnectFor
	}
	return o
}

type Conn struct {
	url  string
	opts Options

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	writeMu sync.Mutex

	mu         sync.Mutex
	ws         *websocket.Conn
	pending    map[string]chan struct{}
	joinParams *protocol.Connect
	state      RoomState
	roomClosed chan struct{}
	closedOnce bool
}

// Dial connects to the room endpoint and keeps the connection alive until Close.
func Dial(ctx context.Context, url string, opts Options) (*Conn, error) {
	opts = opts.withDefaults()
	ws, _, err := opts.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		url:        url,
		opts:       opts,
		ctx:        runCtx,
		cancel:     cancel,
		done:       make(chan struct{}),
		ws:         ws,
		pending:    make(map[string]chan struct{}),
		roomClosed: make(chan struct{}),
	}
	go c.run(ws)
	return c, nil
}

// Close stops reconnecting and closes the socket.
func (c *Conn) Close() error {
	c.cancel()
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	var err error
	if ws != nil {
		err = ws.Close()
	}
	<-c.done
	return err
}

// Closed is closed once the server reports the joined room is gone.
func (c *Conn) Closed() <-chan struct{} { return c.roomClosed }

func (c *Conn) State() RoomState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Conn) run(ws *websocket.Conn) {
	defer close(c.done)
	for {
		err := c.readLoop(ws)
		if c.ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Str("module", "client").Msg("connection lost")

		c.mu.Lock()
		c.ws = nil
		c.mu.Unlock()

		ws, err = c.reconnect()
		if err != nil {
			if c.ctx.Err() == nil {
				log.Error().Err(err).Str("module", "client").Msg("gave up reconnecting")
			}
			return
		}
		c.mu.Lock()
		c.ws = ws
		params := c.joinParams
		c.mu.Unlock()
		if params != nil {
			go c.rejoin(*params)
		}
	}
}

func (c *Conn) reconnect() (*websocket.Conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = reconnectInitialWait
	b.Multiplier = reconnectMultiplier
	b.MaxInterval = c.opts.ReconnectMax

	return backoff.Retry(c.ctx, func() (*websocket.Conn, error) {
		ws, _, err := c.opts.Dialer.DialContext(c.ctx, c.url, nil)
		if err != nil {
			log.Debug().Err(err).Str("module", "client").Msg("redial failed")
			return nil, err
		}
		log.Info().Str("module", "client").Msg("reconnected")
		return ws, nil
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(c.opts.ReconnectFor))
}

func (c *Conn) rejoin(params protocol.Connect) {
	params.MessageID = protocol.NewRef(params.Type, params.RoomID, params.UserID).MessageID
	if err := c.Send(c.ctx, &params); err != nil && c.ctx.Err() == nil {
		log.Warn().Err(err).Str("module", "client").Str("room", string(params.RoomID)).Msg("rejoin failed")
	}
}

func (c *Conn) readLoop(ws *websocket.Conn) error {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			_ = ws.Close()
			return err
		}
		ev, err := protocol.DecodeEvent(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("dropped frame")
			continue
		}
		c.handle(ev)
	}
}

func (c *Conn) handle(ev protocol.Event) {
	switch ev := ev.(type) {
	case *protocol.MessageReceived:
		c.resolve(ev.MessageID)
	case *protocol.Ping:
		if err := c.write(protocol.NewPong()); err != nil {
			log.Debug().Err(err).Str("module", "client").Msg("pong")
		}
	case *protocol.RoomClosed:
		c.mu.Lock()
		c.joinParams = nil
		if !c.closedOnce {
			c.closedOnce = true
			close(c.roomClosed)
		}
		c.mu.Unlock()
	case *protocol.ErrorMessage:
		log.Warn().Str("module", "client").Int("code", ev.Code).Str("caused_by", ev.CausedBy).Msg(ev.Message)
	default:
		c.mu.Lock()
		c.state.apply(ev)
		c.mu.Unlock()
	}
	if c.opts.OnEvent != nil {
		c.opts.OnEvent(ev)
	}
}

func (c *Conn) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteMessage(websocket.TextMessage, data)
}
