package transport

import (
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

// rtpReader is the incoming side of a remote track.
type rtpReader interface {
	ReadRTP() (*rtp.Packet, error)
}

type trackRemoteReader struct{ t *webrtc.TrackRemote }

func (r trackRemoteReader) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := r.t.ReadRTP()
	return pkt, err
}

// remoteTrack is one subscribed (peer, kind). The server renegotiates
// after confirming the subscription, so the pion track may be bound
// before or after Subscribe returns; Play works in either order.
type remoteTrack struct {
	key    domain.PeerTrack
	logger zerolog.Logger
	// audioOut opens the default audio output; onStop tells the client.
	audioOut func(domain.PeerID) (core.RenderTarget, error)
	onStop   func(*remoteTrack)

	bindOnce sync.Once
	bound    chan struct{}
	src      rtpReader

	stopOnce sync.Once
	stopped  chan struct{}

	mu      sync.Mutex
	target  core.RenderTarget
	owned   bool
	pumping bool
}

var _ core.RemoteTrack = (*remoteTrack)(nil)

func newRemoteTrack(key domain.PeerTrack, logger zerolog.Logger) *remoteTrack {
	return &remoteTrack{
		key:     key,
		logger:  logger.With().Str("peer", string(key.PeerID)).Str("kind", string(key.Kind)).Logger(),
		bound:   make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (t *remoteTrack) PeerID() domain.PeerID  { return t.key.PeerID }
func (t *remoteTrack) Kind() domain.MediaKind { return t.key.Kind }

// bind hands over the incoming stream; later calls are ignored.
func (t *remoteTrack) bind(src rtpReader) {
	t.bindOnce.Do(func() {
		t.src = src
		close(t.bound)
	})
}

func (t *remoteTrack) Play(target core.RenderTarget) error {
	if t.isStopped() {
		return nil
	}
	owned := false
	if target == nil && t.key.Kind == domain.MediaAudio {
		out, err := t.openAudio()
		if err != nil {
			return err
		}
		target, owned = out, true
	}

	t.mu.Lock()
	prev, prevOwned := t.target, t.owned
	t.target, t.owned = target, owned
	start := !t.pumping && target != nil
	if start {
		t.pumping = true
	}
	t.mu.Unlock()

	if prevOwned && prev != nil && prev != target {
		_ = prev.Close()
	}
	if start {
		go t.pump()
	}
	return nil
}

func (t *remoteTrack) openAudio() (core.RenderTarget, error) {
	if t.audioOut == nil {
		return discard{}, nil
	}
	return t.audioOut(t.key.PeerID)
}

func (t *remoteTrack) pump() {
	select {
	case <-t.bound:
	case <-t.stopped:
		return
	}
	for {
		pkt, err := t.src.ReadRTP()
		if err != nil {
			t.logger.Debug().Err(err).Msg("remote track ended")
			return
		}
		select {
		case <-t.stopped:
			return
		default:
		}
		t.mu.Lock()
		target := t.target
		t.mu.Unlock()
		if target == nil {
			continue
		}
		if err := target.WriteRTP(pkt); err != nil {
			t.logger.Warn().Err(err).Msg("render target write failed, detaching")
			t.mu.Lock()
			if t.target == target {
				t.target = nil
			}
			t.mu.Unlock()
		}
	}
}

func (t *remoteTrack) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopped)
		t.mu.Lock()
		target, owned := t.target, t.owned
		t.target, t.owned = nil, false
		t.mu.Unlock()
		if owned && target != nil {
			_ = target.Close()
		}
		if t.onStop != nil {
			t.onStop(t)
		}
	})
}

func (t *remoteTrack) isStopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}

type discard struct{}

func (discard) WriteRTP(*rtp.Packet) error { return nil }
func (discard) Close() error               { return nil }
