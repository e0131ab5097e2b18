package core

import (
	"context"

	"github.com/pion/rtp"

	"github.com/dkeye/Collab/internal/domain"
)

//go:generate mockgen -source=transport_iface.go -destination=mock/transport_mock.go -package=mock

// RenderTarget is the UI-side sink of one media stream, e.g. a video tile.
type RenderTarget interface {
	WriteRTP(pkt *rtp.Packet) error
	Close() error
}

// LocalTrack is an acquired microphone or camera track.
// Only the session controller that acquired it may release it.
type LocalTrack interface {
	ID() string
	Kind() domain.MediaKind
	// Attach mirrors outgoing packets into target for self view; nil detaches.
	Attach(target RenderTarget)
}

type LocalTracks struct {
	Audio LocalTrack
	Video LocalTrack
}

// List returns the non-nil tracks, audio first.
func (t LocalTracks) List() []LocalTrack {
	out := make([]LocalTrack, 0, 2)
	if t.Audio != nil {
		out = append(out, t.Audio)
	}
	if t.Video != nil {
		out = append(out, t.Video)
	}
	return out
}

// RemoteTrack is one subscribed (peer, kind) stream.
type RemoteTrack interface {
	PeerID() domain.PeerID
	Kind() domain.MediaKind
	// Play starts rendering into target and must not block. Audio tracks
	// take a nil target and play through the transport's audio output; a nil
	// target detaches a video track.
	Play(target RenderTarget) error
	Stop()
}

// MediaTransport is the port to the real-time media vendor.
type MediaTransport interface {
	Join(ctx context.Context, appID string, channelID domain.ChannelID, token string, selfID domain.PeerID) error
	AcquireLocalTracks(ctx context.Context) (LocalTracks, error)
	Publish(ctx context.Context, tracks []LocalTrack) error
	EnumeratePresentPeers(ctx context.Context) ([]domain.PeerTrack, error)
	Subscribe(ctx context.Context, peerID domain.PeerID, kind domain.MediaKind) (RemoteTrack, error)
	// Events returns the presence stream. Events received since Join are
	// buffered until the first call; cancel stops delivery.
	Events() (events <-chan domain.PresenceEvent, cancel func())
	// Leave is best-effort.
	Leave(ctx context.Context) error
	// ReleaseTrack is idempotent.
	ReleaseTrack(track LocalTrack)
}
