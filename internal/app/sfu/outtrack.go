package sfu

import (
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

// TrackState is the forwarding state of one subscriber copy.
type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateDelete
)

func (s TrackState) String() string {
	switch s {
	case TrackStateOk:
		return "ok"
	case TrackStateDelete:
		return "delete"
	}
	return "unknown"
}

// OutTrack is one forwarded copy of a published stream on a subscriber's
// PeerConnection. Sender is kept so the copy can be removed and the
// subscriber renegotiated without it.
type OutTrack struct {
	Track  *webrtc.TrackLocalStaticRTP
	Sender *webrtc.RTPSender
	state  atomic.Int32
}

func NewOutTrack(track *webrtc.TrackLocalStaticRTP, sender *webrtc.RTPSender) *OutTrack {
	return &OutTrack{Track: track, Sender: sender}
}

func (ot *OutTrack) GetState() TrackState {
	return TrackState(ot.state.Load())
}

// MarkDelete is final: the relay drops the copy on its next packet.
func (ot *OutTrack) MarkDelete() {
	ot.state.Store(int32(TrackStateDelete))
}
