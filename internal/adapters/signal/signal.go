package signal

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Poker/internal/core"
	"github.com/dkeye/Poker/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const (
	DefaultReadLimit      = 32 << 10
	DefaultPingPeriod     = 20 * time.Second
	DefaultPongWait       = 60 * time.Second
	DefaultMaxConnections = 2500
	DefaultDedupTTL       = 30 * time.Second

	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// Rooms is the registry view the controller needs.
type Rooms interface {
	GetRoom(id domain.RoomID) (*core.Room, error)
}

type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	PongWait       time.Duration
	MaxConnections int
	DedupTTL       time.Duration
	AllowedOrigins []string
	Usage          core.UsageRecorder
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = DefaultReadLimit
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = DefaultPingPeriod
	}
	if o.PongWait <= 0 {
		o.PongWait = DefaultPongWait
	}
	if o.MaxConnections <= 0 {
		o.MaxConnections = DefaultMaxConnections
	}
	if o.DedupTTL <= 0 {
		o.DedupTTL = DefaultDedupTTL
	}
	return o
}

// Controller owns the room WebSocket endpoint.
type Controller struct {
	Rooms    Rooms
	opts     Options
	upgrader websocket.Upgrader
	active   atomic.Int64
}

func NewController(rooms Rooms, opts Options) *Controller {
	opts = opts.withDefaults()
	ctl := &Controller{Rooms: rooms, opts: opts}
	ctl.upgrader = websocket.Upgrader{
		CheckOrigin: originChecker(opts.AllowedOrigins),
	}
	return ctl
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// ActiveConnections is the number of sockets currently served.
func (ctl *Controller) ActiveConnections() int { return int(ctl.active.Load()) }

// Busy reports whether a new socket would exceed the connection ceiling.
func (ctl *Controller) Busy() bool {
	return ctl.ActiveConnections() >= ctl.opts.MaxConnections
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn) *WsSignalConn {
	return &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, sendBuffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleRoom upgrades the request and serves the socket until it closes or ctx ends.
func (ctl *Controller) HandleRoom(ctx context.Context, c *gin.Context) {
	if ctl.Busy() {
		log.Warn().Str("module", "signal").Int("active", ctl.ActiveConnections()).Msg("connection ceiling reached")
		c.String(http.StatusServiceUnavailable, "Server is busy")
		return
	}

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := newWsSignalConn(ws)
	ctl.active.Add(1)
	if ctl.opts.Usage != nil {
		ctl.opts.Usage.Record(domain.UsageConnectionOpened, 1)
	}
	sess := newSession(conn, ctl.opts.DedupTTL)
	log.Info().Str("module", "signal").Str("remote", c.Request.RemoteAddr).Msg("new WS connection")

	go ctl.writePump(conn)
	go ctl.readPump(ctx, sess)
}

func (ctl *Controller) release(sess *session) {
	sess.detach()
	sess.conn.Close()
	ctl.active.Add(-1)
	if ctl.opts.Usage != nil {
		ctl.opts.Usage.Record(domain.UsageConnectionOpened, -1)
	}
}
