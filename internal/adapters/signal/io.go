package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/protocol"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ping := time.NewTicker(ctl.opts.PingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			c.Close()
			return
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				c.Close()
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Info().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				c.Close()
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, sess core.MemberSession, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		c.Close()
		if cur, ok := ctl.Orch.Registry.GetSession(sid); ok && cur == sess {
			ctl.Orch.KickBySID(sid)
		}
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
			ctl.handleSignal(ctx, sid, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, sid core.SessionID, c *WsSignalConn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		_ = ctl.sendJSON(c, protocol.NewError("", protocol.CodeBadPayload, "bad json"))
		return
	}

	switch env.Type {
	case protocol.TypeJoin:
		ctl.handleJoin(sid, c, data)
	case protocol.TypeLeave:
		ctl.handleLeave(sid, c, env.ID)
	case protocol.TypePing:
		ctl.handlePing(c, env.ID)
	case protocol.TypeRename:
		ctl.handleRename(sid, c, data)
	case protocol.TypeWhoAmI:
		ctl.handleWhoAmI(sid, c, env.ID)
	case protocol.TypePeers:
		ctl.handlePeers(sid, c, env.ID)
	case protocol.TypeOffer:
		ctl.handleOffer(ctx, sid, c, data)
	case protocol.TypeAnswer:
		ctl.handleAnswer(sid, c, data)
	case protocol.TypeSubscribe:
		ctl.handleSubscribe(ctx, sid, c, data)
	case protocol.TypeUnsubscribe:
		ctl.handleUnsubscribe(ctx, sid, c, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		_ = ctl.sendJSON(c, protocol.NewError(env.ID, protocol.CodeBadPayload, "unknown type"))
	}
}

func (ctl *SignalWSController) sendJSON(c core.SignalConnection, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return err
	}
	return c.TrySend(b)
}

// decode unmarshals and validates a request payload, replying with a
// bad_payload error on failure.
func (ctl *SignalWSController) decode(c *WsSignalConn, data []byte, v any) bool {
	var env protocol.Envelope
	_ = json.Unmarshal(data, &env)
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("type", env.Type).Msg("bad payload")
		_ = ctl.sendJSON(c, protocol.NewError(env.ID, protocol.CodeBadPayload, err.Error()))
		return false
	}
	if err := ctl.validate.Struct(v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("type", env.Type).Msg("invalid payload")
		_ = ctl.sendJSON(c, protocol.NewError(env.ID, protocol.CodeBadPayload, err.Error()))
		return false
	}
	return true
}
