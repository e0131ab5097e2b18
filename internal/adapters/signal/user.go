package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/protocol"
)

func (ctl *SignalWSController) handleRename(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p protocol.RenameRequest
	if !ctl.decode(conn, data, &p) {
		return
	}

	identity, err := ctl.Orch.Registry.Rename(sid, p.Name)
	if err != nil {
		_ = ctl.sendJSON(conn, protocol.NewError(p.ID, protocol.CodeBadPayload, err.Error()))
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("name", p.Name).Msg("rename")
	ctl.handleWhoAmI(sid, conn, p.ID)

	ctl.BroadcastFrom(sid, protocol.MemberEvent{
		Type:   protocol.TypeMemberUpdated,
		Member: core.MemberDTO{ID: identity.ID, DisplayName: identity.DisplayName},
	})
}

func (ctl *SignalWSController) handleWhoAmI(
	sid core.SessionID,
	conn *WsSignalConn,
	id string,
) {
	identity := ctl.Orch.Registry.GetOrCreateIdentity(sid)

	resp := protocol.WhoAmI{
		Type:        protocol.TypeWhoAmI,
		ID:          id,
		DisplayName: identity.DisplayName,
	}
	if ch, _, ok := ctl.Orch.Registry.ChannelOf(sid); ok {
		resp.Channel = ch
		resp.Peer = identity.ID
	}
	_ = ctl.sendJSON(conn, resp)
}
