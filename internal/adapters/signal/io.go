package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Poker/internal/domain"
	"github.com/dkeye/Poker/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) writePump(c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()

	ping, _ := json.Marshal(protocol.NewPing())
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := ctl.write(c, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump write error")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := ctl.write(c, ping); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping error")
				c.Close()
				return
			}
		}
	}
}

func (ctl *Controller) write(c *WsSignalConn, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (ctl *Controller) readPump(ctx context.Context, sess *session) {
	c := sess.conn
	stop := context.AfterFunc(ctx, c.Close)
	defer func() {
		stop()
		log.Info().Str("module", "signal").Str("room", string(sess.roomID)).Msg("readPump closing")
		ctl.release(sess)
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
		ctl.handleFrame(sess, data)
	}
}

// handleFrame decodes and applies one client frame. Commands carrying a
// messageID are acknowledged once handled, whatever the outcome.
func (ctl *Controller) handleFrame(sess *session, data []byte) {
	cmd, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("dropped frame")
		return
	}
	id := cmd.AckID()
	if id == "" {
		return
	}
	defer ctl.sendJSON(sess.conn, protocol.NewMessageReceived(id))

	if sess.dedup.Seen(id) {
		log.Debug().Str("module", "signal").Str("message", id).Msg("duplicate message")
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("module", "signal").Str("type", cmd.CommandType()).Str("message", id).
				Str("panic", fmt.Sprint(rec)).Msg("handler panic")
			ctl.sendError(sess.conn, domain.Internal(fmt.Errorf("%v", rec)), id)
		}
	}()

	if err := ctl.dispatch(sess, cmd); err != nil {
		ctl.sendError(sess.conn, err, id)
	}
}

func (ctl *Controller) sendError(c *WsSignalConn, err error, causedBy string) {
	if causedBy == "" {
		causedBy = "unknown"
	}
	code, msg := domain.CodeInternal, domain.Internal(err).Message
	var de *domain.Error
	if errors.As(err, &de) {
		code, msg = de.Code, de.Message
	}
	log.Warn().Err(err).Str("module", "signal").Int("code", int(code)).Str("caused_by", causedBy).Msg("command failed")
	ctl.sendJSON(c, protocol.NewError(code, msg, causedBy))
}

func (ctl *Controller) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
