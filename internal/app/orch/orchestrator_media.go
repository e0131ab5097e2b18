package orch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/app/sfu"
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
	"github.com/dkeye/Collab/internal/protocol"
)

func (o *Orchestrator) BindMediaHandlers(mc core.MediaConnection, sid core.SessionID) {
	mc.OnTrack(func(trackCtx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		o.OnTrack(trackCtx, sid, track)
	})
	mc.OnClosed(func() { o.OnMediaDisconnect(sid, mc) })
}

// OnMediaDisconnect handles a PeerConnection that failed or closed on its own.
func (o *Orchestrator) OnMediaDisconnect(sid core.SessionID, mc core.MediaConnection) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok || sess.Media() != mc {
		return
	}
	o.cleanupMedia(sid)
}

func (o *Orchestrator) cleanupMedia(sid core.SessionID) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return
	}
	if o.Relays != nil {
		kinds, detached := o.Relays.StopRelays(sid)
		for _, mate := range o.Registry.RoomMates(sid) {
			o.Relays.MarkSubscriberDelete(mate.SID, sid)
		}
		if ch, _, ok := o.Registry.ChannelOf(sid); ok && len(kinds) > 0 {
			o.Broadcast(ch, sid, domain.PresenceEvent{
				Type:   domain.PeerUnpublished,
				PeerID: sess.Meta().Identity().ID,
			})
		}
		o.dropOutTracks(detached)
	}

	if mc := sess.Media(); mc != nil {
		sess.UpdateMedia(nil)
		mc.Close()
	}
}

// dropOutTracks removes the senders of a departed publisher from every
// subscriber and renegotiates each affected connection in the background.
func (o *Orchestrator) dropOutTracks(detached []sfu.Detached) {
	byDst := make(map[core.SessionID][]*sfu.OutTrack)
	for _, d := range detached {
		byDst[d.Dst] = append(byDst[d.Dst], d.OT)
	}
	for dst, ots := range byDst {
		sess, ok := o.Registry.GetSession(dst)
		if !ok {
			continue
		}
		mc := sess.Media()
		if mc == nil || mc.IsClosed() {
			continue
		}
		logger := log.With().Str("module", "orch").Str("sid", string(dst)).Logger()
		removed := 0
		for _, ot := range ots {
			if err := mc.RemoveSender(ot.Sender); err != nil {
				logger.Warn().Err(err).Msg("remove out track")
				continue
			}
			removed++
		}
		if removed == 0 {
			continue
		}
		send := offerTo(sess)
		o.renegotiations.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), o.renegotiateTimeout())
			defer cancel()
			if err := mc.Renegotiate(ctx, send); err != nil {
				logger.Warn().Err(err).Msg("renegotiate after unpublish")
				return
			}
			logger.Info().Int("removed", removed).Msg("out tracks removed")
		})
	}
}

// offerTo delivers a server offer over the signaling socket of sess.
func offerTo(sess core.MemberSession) func(webrtc.SessionDescription) error {
	return func(offer webrtc.SessionDescription) error {
		sig := sess.Signal()
		if sig == nil {
			return ErrNotJoined
		}
		b, err := json.Marshal(protocol.SessionDescription{Type: protocol.TypeOffer, SDP: offer.SDP})
		if err != nil {
			return err
		}
		return sig.TrySend(b)
	}
}

// OnTrack is called when a publisher's track arrives. It starts the relay
// and announces the publication to the channel.
func (o *Orchestrator) OnTrack(ctx context.Context, sid core.SessionID, track *webrtc.TrackRemote) {
	if o.Relays == nil {
		return
	}
	sess, ok := o.Registry.GetSession(sid)
	if !ok || sess.Media() == nil {
		return
	}
	kind, err := domain.ParseMediaKind(track.Kind().String())
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("OnTrack: unsupported kind")
		return
	}
	o.Relays.StartRelay(ctx, sfu.Key{SID: sid, Kind: kind}, track)

	ch, _, ok := o.Registry.ChannelOf(sid)
	if !ok {
		log.Info().
			Str("module", "orch").
			Str("sid", string(sid)).
			Msg("OnTrack: no channel for sid")
		return
	}
	o.Broadcast(ch, sid, domain.PresenceEvent{
		Type:   domain.PeerPublished,
		PeerID: sess.Meta().Identity().ID,
		Kind:   kind,
	})
}

// Subscribe forwards (peer, kind) to the PeerConnection of sid and
// renegotiates through send. Subscribing twice is a no-op.
func (o *Orchestrator) Subscribe(
	ctx context.Context,
	sid core.SessionID,
	peer domain.PeerID,
	kind domain.MediaKind,
	send func(webrtc.SessionDescription) error,
) error {
	key, mc, err := o.resolve(sid, peer, kind)
	if err != nil {
		return err
	}
	if o.Relays.Subscribed(key, sid) {
		return nil
	}
	src, ok := o.Relays.SrcTrack(key)
	if !ok {
		return ErrNoSuchTrack
	}

	local, err := webrtc.NewTrackLocalStaticRTP(src.Codec().RTPCodecCapability, string(kind), string(peer))
	if err != nil {
		return fmt.Errorf("new out track: %w", err)
	}
	sender, err := mc.AddLocalTrack(local)
	if err != nil {
		return fmt.Errorf("add out track: %w", err)
	}
	if !o.Relays.AddSubscriberIfAbsent(key, sid, sfu.NewOutTrack(local, sender)) {
		_ = mc.RemoveSender(sender)
		if !o.Relays.HasRelay(key) {
			return ErrNoSuchTrack
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.renegotiateTimeout())
	defer cancel()
	if err := mc.Renegotiate(ctx, send); err != nil {
		if ot, ok := o.Relays.RemoveSubscriber(key, sid); ok {
			_ = mc.RemoveSender(ot.Sender)
		}
		return fmt.Errorf("renegotiate: %w", err)
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("peer", string(peer)).Str("kind", string(kind)).Msg("subscribed")
	return nil
}

// Unsubscribe stops forwarding (peer, kind) to sid.
func (o *Orchestrator) Unsubscribe(
	ctx context.Context,
	sid core.SessionID,
	peer domain.PeerID,
	kind domain.MediaKind,
	send func(webrtc.SessionDescription) error,
) error {
	key, mc, err := o.resolve(sid, peer, kind)
	if err != nil {
		if errors.Is(err, ErrNoSuchTrack) {
			return nil
		}
		return err
	}
	ot, ok := o.Relays.RemoveSubscriber(key, sid)
	if !ok {
		return nil
	}
	if err := mc.RemoveSender(ot.Sender); err != nil {
		return fmt.Errorf("remove out track: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, o.renegotiateTimeout())
	defer cancel()
	if err := mc.Renegotiate(ctx, send); err != nil {
		return fmt.Errorf("renegotiate: %w", err)
	}
	return nil
}

func (o *Orchestrator) resolve(sid core.SessionID, peer domain.PeerID, kind domain.MediaKind) (sfu.Key, core.MediaConnection, error) {
	if o.Relays == nil {
		return sfu.Key{}, nil, ErrNoSuchTrack
	}
	ch, sess, ok := o.Registry.ChannelOf(sid)
	if !ok {
		return sfu.Key{}, nil, ErrNotJoined
	}
	mc := sess.Media()
	if mc == nil || mc.IsClosed() {
		return sfu.Key{}, nil, ErrNoMedia
	}
	room, ok := o.Rooms.GetRoom(ch)
	if !ok {
		return sfu.Key{}, nil, ErrNotJoined
	}
	src, ok := room.SessionOf(peer)
	if !ok || src == sid {
		return sfu.Key{}, nil, ErrNoSuchTrack
	}
	return sfu.Key{SID: src, Kind: kind}, mc, nil
}
