package sfu

import (
	"context"
	"maps"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

// RTPSource is what a relay reads from; *webrtc.TrackRemote in production.
type RTPSource interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
	Codec() webrtc.RTPCodecParameters
}

// RTPSink is what a relay writes to; *webrtc.TrackLocalStaticRTP in production.
type RTPSink interface {
	WriteRTP(p *rtp.Packet) error
}

// Key names one published stream.
type Key struct {
	SID  core.SessionID
	Kind domain.MediaKind
}

// Detached is an out track cut off from a stopped relay.
type Detached struct {
	Dst core.SessionID
	Key Key
	OT  *OutTrack
}

type sink struct {
	w  RTPSink
	ot *OutTrack
}

type Relay struct {
	Key Key
	Src RTPSource

	mu    sync.RWMutex
	sinks map[core.SessionID]sink

	cancel context.CancelFunc
}

func NewRelay(key Key, src RTPSource, cancel context.CancelFunc) *Relay {
	return &Relay{
		Key:    key,
		Src:    src,
		sinks:  make(map[core.SessionID]sink),
		cancel: cancel,
	}
}

// loop reads RTP packets from the source track and forwards them to all subscribers.
func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, marking all out tracks for delete")
			r.markAllDelete()
			return
		default:
		}
		pkt, _, err := r.Src.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("relay source ended")
			r.markAllDelete()
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	r.mu.RLock()
	snapshot := maps.Clone(r.sinks)
	r.mu.RUnlock()

	dirty := make([]core.SessionID, 0, len(snapshot))
	for dst, s := range snapshot {
		switch s.ot.GetState() {
		case TrackStateDelete:
			dirty = append(dirty, dst)
		case TrackStateOk:
			if err := s.w.WriteRTP(pkt); err != nil {
				logger.Error().
					Err(err).
					Str("dst_sid", string(dst)).
					Msg("relay write RTP error, marking outtrack as delete")
				s.ot.MarkDelete()
				dirty = append(dirty, dst)
			}
		}
	}

	// Cleanup is done outside the RLock.
	if len(dirty) > 0 {
		r.cleanupDeleted(dirty)
	}
}

func (r *Relay) cleanupDeleted(dirty []core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sid := range dirty {
		if s, ok := r.sinks[sid]; ok && s.ot.GetState() == TrackStateDelete {
			delete(r.sinks, sid)
		}
	}
}

// detachAll marks every out track deleted, empties the relay and returns
// the detached copies so their senders can be removed.
func (r *Relay) detachAll() []Detached {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Detached, 0, len(r.sinks))
	for dst, s := range r.sinks {
		s.ot.MarkDelete()
		out = append(out, Detached{Dst: dst, Key: r.Key, OT: s.ot})
	}
	clear(r.sinks)
	return out
}

func (r *Relay) markAllDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sinks {
		s.ot.MarkDelete()
	}
}

// AddOutTrackIfAbsent attaches ot unless dst already has a live out track.
func (r *Relay) AddOutTrackIfAbsent(dst core.SessionID, ot *OutTrack) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sinks[dst]; ok && old.ot.GetState() != TrackStateDelete {
		return false
	}
	r.sinks[dst] = sink{w: ot.Track, ot: ot}
	return true
}

// RemoveOutTrack detaches dst and returns its out track.
func (r *Relay) RemoveOutTrack(dst core.SessionID) (*OutTrack, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sinks[dst]
	if !ok {
		return nil, false
	}
	s.ot.MarkDelete()
	delete(r.sinks, dst)
	return s.ot, true
}

// OutTrack returns the live out track of dst.
func (r *Relay) OutTrack(dst core.SessionID) (*OutTrack, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[dst]
	if !ok || s.ot.GetState() == TrackStateDelete {
		return nil, false
	}
	return s.ot, true
}
