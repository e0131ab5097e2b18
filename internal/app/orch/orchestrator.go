// Package orch ties channel membership, signaling and media relays together.
package orch

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Collab/internal/app"
	"github.com/dkeye/Collab/internal/app/sfu"
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

const DefaultRenegotiateTimeout = 10 * time.Second

var (
	ErrNotJoined   = errors.New("not joined to a channel")
	ErrNoSuchTrack = errors.New("no such published track")
	ErrNoMedia     = errors.New("no media connection")
)

type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Policy   app.Policy
	Relays   *sfu.RelayManager

	RenegotiateTimeout time.Duration

	renegotiations conc.WaitGroup
}

// OnFrame fans a raw frame out to the channel of sid and applies the
// backpressure policy to members that could not keep up.
func (o *Orchestrator) OnFrame(sid core.SessionID, data core.Frame) {
	ch, _, ok := o.Registry.ChannelOf(sid)
	if !ok {
		return
	}
	o.fanout(ch, sid, data)
}

// Broadcast sends v to every member of ch except from.
func (o *Orchestrator) Broadcast(ch domain.ChannelID, from core.SessionID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("broadcast marshal")
		return
	}
	o.fanout(ch, from, b)
}

func (o *Orchestrator) fanout(ch domain.ChannelID, from core.SessionID, data core.Frame) {
	room, ok := o.Rooms.GetRoom(ch)
	if !ok {
		return
	}
	res := room.Broadcast(from, data)
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			for _, snap := range o.Registry.MembersOf(ch) {
				if snap.Session == slow {
					log.Warn().Str("module", "orch").Str("sid", string(snap.SID)).Msg("kicking slow member")
					o.Leave(snap.SID)
					o.Registry.Cancel(snap.SID)
				}
			}
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
}

func (o *Orchestrator) renegotiateTimeout() time.Duration {
	if o.RenegotiateTimeout > 0 {
		return o.RenegotiateTimeout
	}
	return DefaultRenegotiateTimeout
}
