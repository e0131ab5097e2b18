package signal

import (
	"context"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/adapters/rtc"
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/protocol"
)

// handleOffer answers a publisher offer. The first offer creates the
// PeerConnection; later offers renegotiate it.
func (ctl *SignalWSController) handleOffer(
	ctx context.Context,
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p protocol.SessionDescription
	if !ctl.decode(conn, data, &p) {
		return
	}
	_, sess, ok := ctl.Orch.Registry.ChannelOf(sid)
	if !ok {
		_ = ctl.sendJSON(conn, protocol.NewError(p.ID, protocol.CodeNotJoined, "join first"))
		return
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: p.SDP}
	mc := sess.Media()
	fresh := mc == nil || mc.IsClosed()
	if fresh {
		wc, err := rtc.NewWebRTCConnection(rtc.DefaultWebRTCConfig(ctl.opts.ICEServers), sid)
		if err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("webrtc new pc")
			_ = ctl.sendJSON(conn, protocol.NewError(p.ID, protocol.CodeInternal, err.Error()))
			return
		}
		ctl.Orch.BindMediaHandlers(wc, sid)
		if err := wc.Start(ctx); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("webrtc start")
			wc.Close()
			_ = ctl.sendJSON(conn, protocol.NewError(p.ID, protocol.CodeInternal, err.Error()))
			return
		}
		sess.UpdateMedia(wc)
		mc = wc
	}

	answer, err := mc.ApplyOfferAndCreateAnswer(offer)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("webrtc apply offer")
		if fresh {
			sess.UpdateMedia(nil)
			mc.Close()
		}
		_ = ctl.sendJSON(conn, protocol.NewError(p.ID, protocol.CodeInternal, err.Error()))
		return
	}

	_ = ctl.sendJSON(conn, protocol.SessionDescription{
		Type: protocol.TypeAnswer,
		ID:   p.ID,
		SDP:  answer.SDP,
	})
}

// handleAnswer completes a server initiated renegotiation.
func (ctl *SignalWSController) handleAnswer(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p protocol.SessionDescription
	if !ctl.decode(conn, data, &p) {
		return
	}
	sess, ok := ctl.Orch.Registry.GetSession(sid)
	if !ok || sess.Media() == nil {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("answer: no media connection")
		return
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: p.SDP}
	if err := sess.Media().ApplyAnswer(answer); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("answer dropped")
	}
}

// handleSubscribe runs as a connection job: the renegotiation it starts
// needs the read loop to deliver the client's answer.
func (ctl *SignalWSController) handleSubscribe(
	ctx context.Context,
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p protocol.SubscribeRequest
	if !ctl.decode(conn, data, &p) {
		return
	}
	ctl.schedule(conn, p.ID, func() {
		err := ctl.Orch.Subscribe(ctx, sid, p.Peer, p.Kind, ctl.offerSender(conn))
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("peer", string(p.Peer)).Str("kind", string(p.Kind)).Msg("subscribe failed")
			_ = ctl.sendJSON(conn, protocol.NewError(p.ID, errorCode(err), err.Error()))
			return
		}
		_ = ctl.sendJSON(conn, protocol.Subscribed{Type: protocol.TypeSubscribed, ID: p.ID, Peer: p.Peer, Kind: p.Kind})
	})
}

func (ctl *SignalWSController) handleUnsubscribe(
	ctx context.Context,
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p protocol.SubscribeRequest
	if !ctl.decode(conn, data, &p) {
		return
	}
	ctl.schedule(conn, p.ID, func() {
		if err := ctl.Orch.Unsubscribe(ctx, sid, p.Peer, p.Kind, ctl.offerSender(conn)); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("unsubscribe failed")
			_ = ctl.sendJSON(conn, protocol.NewError(p.ID, errorCode(err), err.Error()))
			return
		}
		_ = ctl.sendJSON(conn, protocol.Ack{Type: protocol.TypeUnsubscribe, ID: p.ID})
	})
}

func (ctl *SignalWSController) schedule(conn *WsSignalConn, id string, job func()) {
	if !conn.enqueue(job) {
		_ = ctl.sendJSON(conn, protocol.NewError(id, protocol.CodeInternal, ErrBackpressure.Error()))
	}
}

func (ctl *SignalWSController) offerSender(conn *WsSignalConn) func(webrtc.SessionDescription) error {
	return func(offer webrtc.SessionDescription) error {
		return ctl.sendJSON(conn, protocol.SessionDescription{Type: protocol.TypeOffer, SDP: offer.SDP})
	}
}
