package transport

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

const mtu = 1200

var (
	audioCodec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: opusClockRate, Channels: 2}
	videoCodec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: vp8ClockRate}
)

// rtpWriter is the outgoing side of a local track.
type rtpWriter interface {
	WriteRTP(p *rtp.Packet) error
}

// localTrack packetizes frames of a source into an RTP track and mirrors
// every packet into the attached self view.
type localTrack struct {
	id     string
	kind   domain.MediaKind
	track  *webrtc.TrackLocalStaticRTP
	out    rtpWriter
	logger zerolog.Logger

	mu      sync.Mutex
	preview core.RenderTarget

	cancel  context.CancelFunc
	done    chan struct{}
	release sync.Once
}

var _ core.LocalTrack = (*localTrack)(nil)

func newLocalTrack(kind domain.MediaKind, streamID string, logger zerolog.Logger) (*localTrack, error) {
	codec := audioCodec
	if kind == domain.MediaVideo {
		codec = videoCodec
	}
	id := uuid.NewString()
	track, err := webrtc.NewTrackLocalStaticRTP(codec, string(kind), streamID)
	if err != nil {
		return nil, err
	}
	return &localTrack{
		id:     id,
		kind:   kind,
		track:  track,
		out:    track,
		logger: logger.With().Str("track", id).Str("kind", string(kind)).Logger(),
		done:   make(chan struct{}),
	}, nil
}

func (t *localTrack) ID() string             { return t.id }
func (t *localTrack) Kind() domain.MediaKind { return t.kind }

func (t *localTrack) Attach(target core.RenderTarget) {
	t.mu.Lock()
	t.preview = target
	t.mu.Unlock()
}

func (t *localTrack) packetizer() rtp.Packetizer {
	if t.kind == domain.MediaVideo {
		return rtp.NewPacketizer(mtu, 96, rand.Uint32(), &codecs.VP8Payloader{EnablePictureID: true}, rtp.NewRandomSequencer(), vp8ClockRate)
	}
	return rtp.NewPacketizer(mtu, 111, rand.Uint32(), &codecs.OpusPayloader{}, rtp.NewRandomSequencer(), opusClockRate)
}

// start feeds src until the track is released. src is closed on exit.
func (t *localTrack) start(src source) {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go t.feed(ctx, src)
}

func (t *localTrack) feed(ctx context.Context, src source) {
	defer close(t.done)
	defer func() { _ = src.close() }()

	p := t.packetizer()
	timer := time.NewTimer(0)
	defer timer.Stop()
	fresh := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		f, err := src.next()
		if errors.Is(err, io.EOF) {
			if fresh {
				t.logger.Warn().Msg("source has no frames")
				return
			}
			fresh = true
			if err := src.rewind(); err != nil {
				t.logger.Error().Err(err).Msg("rewind source")
				return
			}
			timer.Reset(0)
			continue
		}
		if err != nil {
			t.logger.Error().Err(err).Msg("read source")
			return
		}
		fresh = false
		timer.Reset(f.duration)

		t.mu.Lock()
		preview := t.preview
		t.mu.Unlock()
		for _, pkt := range p.Packetize(f.data, f.samples) {
			if preview != nil {
				if err := preview.WriteRTP(pkt); err != nil {
					t.logger.Warn().Err(err).Msg("self view write failed, detaching")
					t.Attach(nil)
					preview = nil
				}
			}
			if err := t.out.WriteRTP(pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
				t.logger.Warn().Err(err).Msg("write RTP")
			}
		}
	}
}

// stop ends feeding; safe to call more than once.
func (t *localTrack) stop() {
	t.release.Do(func() {
		if t.cancel == nil {
			close(t.done)
			return
		}
		t.cancel()
		<-t.done
		t.Attach(nil)
		t.logger.Info().Msg("local track released")
	})
}
