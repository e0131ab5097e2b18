package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
	"github.com/dkeye/Collab/internal/protocol"
)

// Join puts sid into ch under identity. A session already in a channel
// leaves it first. Fails with core.ErrPeerTaken when another session of
// the channel holds the same peer id.
func (o *Orchestrator) Join(sid core.SessionID, ch domain.ChannelID, identity *domain.Identity) (core.RoomService, error) {
	if prev, _, ok := o.Registry.ChannelOf(sid); ok {
		o.Leave(sid)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_channel", string(prev)).Msg("left previous channel")
	}
	session, ok := o.Registry.GetSession(sid)
	if !ok {
		return nil, ErrNotJoined
	}
	o.Registry.BindIdentity(sid, identity)

	room := o.Rooms.GetOrCreate(ch)
	if err := room.AddMember(sid, session); err != nil {
		return nil, err
	}
	o.Registry.UpdateChannel(sid, ch)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("channel", string(ch)).Msg("added to channel")

	o.Broadcast(ch, sid, protocol.MemberEvent{
		Type:   protocol.TypeMemberJoined,
		Member: core.MemberDTO{ID: identity.ID, DisplayName: identity.DisplayName},
	})
	return room, nil
}

// Leave removes sid from its channel and tears down its media. The
// signaling connection stays open.
func (o *Orchestrator) Leave(sid core.SessionID) {
	ch, sess, ok := o.Registry.ChannelOf(sid)
	o.cleanupMedia(sid)
	if !ok {
		return
	}
	o.cleanupMembership(sid)
	if o.Policy != nil {
		o.Policy.Forget(sess)
	}
	id := sess.Meta().Identity()
	o.Broadcast(ch, sid, protocol.MemberEvent{
		Type:   protocol.TypeMemberLeft,
		Member: core.MemberDTO{ID: id.ID, DisplayName: id.DisplayName},
	})
}

// KickBySID leaves the channel and forgets the session entirely.
func (o *Orchestrator) KickBySID(sid core.SessionID) {
	sess, ok := o.Registry.GetSession(sid)
	o.Leave(sid)
	if ok {
		o.Registry.Unbind(sid, sess)
	}
}

func (o *Orchestrator) cleanupMembership(sid core.SessionID) {
	ch, _, ok := o.Registry.ChannelOf(sid)
	if !ok {
		return
	}
	if room, ok := o.Rooms.GetRoom(ch); ok {
		room.RemoveMember(sid)
		if room.MemberCount() == 0 {
			o.Rooms.StopRoom(ch)
			log.Info().Str("module", "orch").Str("channel", string(ch)).Msg("channel empty, stopped")
		}
	}
	o.Registry.RemoveChannel(sid)
}

func (o *Orchestrator) EvictRoom(ch domain.ChannelID) {
	for _, snap := range o.Registry.MembersOf(ch) {
		o.Leave(snap.SID)
	}
	o.Rooms.StopRoom(ch)
}

// Shutdown evicts every channel and stops all relays.
func (o *Orchestrator) Shutdown() {
	for _, info := range o.Rooms.List() {
		o.EvictRoom(info.ID)
	}
	o.renegotiations.Wait()
	if o.Relays != nil {
		o.Relays.Close()
	}
}

// PresentTracks lists what the other members of the channel of sid
// currently publish.
func (o *Orchestrator) PresentTracks(sid core.SessionID) ([]domain.PeerTrack, error) {
	if _, _, ok := o.Registry.ChannelOf(sid); !ok {
		return nil, ErrNotJoined
	}
	out := []domain.PeerTrack{}
	if o.Relays == nil {
		return out, nil
	}
	for _, mate := range o.Registry.RoomMates(sid) {
		peer := mate.Session.Meta().Identity().ID
		for _, kind := range o.Relays.Kinds(mate.SID) {
			out = append(out, domain.PeerTrack{PeerID: peer, Kind: kind})
		}
	}
	return out, nil
}
