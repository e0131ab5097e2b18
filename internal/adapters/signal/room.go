package signal

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/app/orch"
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
	"github.com/dkeye/Collab/internal/protocol"
)

func (ctl *SignalWSController) handleJoin(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p protocol.JoinRequest
	if !ctl.decode(conn, data, &p) {
		return
	}
	if !ctl.limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("join rate limited")
		_ = ctl.sendJSON(conn, protocol.NewError(p.ID, protocol.CodeRateLimited, "too many joins"))
		return
	}
	if !ctl.opts.Auth.Allow(p.AppID, p.Token) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("app_id", p.AppID).Msg("join rejected")
		_ = ctl.sendJSON(conn, protocol.NewError(p.ID, protocol.CodeUnauthorized, "bad app id or token"))
		return
	}
	if err := p.Channel.Validate(); err != nil {
		_ = ctl.sendJSON(conn, protocol.NewError(p.ID, protocol.CodeBadPayload, err.Error()))
		return
	}
	identity, err := domain.NewIdentity(p.Peer, p.Name)
	if err != nil {
		_ = ctl.sendJSON(conn, protocol.NewError(p.ID, protocol.CodeBadPayload, err.Error()))
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("channel", string(p.Channel)).Str("peer", string(p.Peer)).Msg("join")
	room, err := ctl.Orch.Join(sid, p.Channel, identity)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("join failed")
		_ = ctl.sendJSON(conn, protocol.NewError(p.ID, errorCode(err), err.Error()))
		return
	}

	_ = ctl.sendJSON(conn, protocol.Joined{
		Type:    protocol.TypeJoined,
		ID:      p.ID,
		Channel: room.Room().ID,
		Members: room.MembersSnapshot(),
		Count:   room.MemberCount(),
	})
}

// handleLeave leaves the current channel; the connection stays open.
func (ctl *SignalWSController) handleLeave(
	sid core.SessionID,
	conn *WsSignalConn,
	id string,
) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	ctl.Orch.Leave(sid)
	_ = ctl.sendJSON(conn, protocol.Ack{Type: protocol.TypeLeft, ID: id})
}

func (ctl *SignalWSController) handlePeers(
	sid core.SessionID,
	conn *WsSignalConn,
	id string,
) {
	tracks, err := ctl.Orch.PresentTracks(sid)
	if err != nil {
		_ = ctl.sendJSON(conn, protocol.NewError(id, errorCode(err), err.Error()))
		return
	}
	_ = ctl.sendJSON(conn, protocol.Peers{Type: protocol.TypePeers, ID: id, Tracks: tracks})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, core.ErrPeerTaken):
		return protocol.CodePeerTaken
	case errors.Is(err, orch.ErrNotJoined):
		return protocol.CodeNotJoined
	case errors.Is(err, orch.ErrNoSuchTrack):
		return protocol.CodeNoSuchTrack
	case errors.Is(err, orch.ErrNoMedia):
		return protocol.CodeNoMedia
	default:
		return protocol.CodeInternal
	}
}
