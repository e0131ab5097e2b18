package transport

import (
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

func TestLocalTrack_FeedsOutAndPreview(t *testing.T) {
	track, err := newLocalTrack(domain.MediaAudio, "alice", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, domain.MediaAudio, track.Kind())
	assert.NotEmpty(t, track.ID())
	assert.Equal(t, "alice", track.track.StreamID())

	out := &recordTarget{}
	preview := &recordTarget{}
	track.out = out
	track.Attach(preview)
	track.start(silenceSource{})

	require.Eventually(t, func() bool { return preview.count() >= 3 }, 2*time.Second, 10*time.Millisecond)
	track.stop()
	track.stop()

	assert.Equal(t, out.count(), preview.count(), "self view mirrors every packet")
	out.mu.Lock()
	first := out.pkts[0]
	out.mu.Unlock()
	assert.EqualValues(t, 111, first.PayloadType)
	assert.Equal(t, opusSilence, first.Payload)
}

func TestLocalTrack_FailingPreviewDetaches(t *testing.T) {
	track, err := newLocalTrack(domain.MediaAudio, "alice", zerolog.Nop())
	require.NoError(t, err)
	out := &recordTarget{}
	preview := &recordTarget{fail: true}
	track.out = out
	track.Attach(preview)
	track.start(silenceSource{})
	defer track.stop()

	require.Eventually(t, func() bool { return out.count() >= 2 }, 2*time.Second, 10*time.Millisecond)
	track.mu.Lock()
	attached := track.preview
	track.mu.Unlock()
	assert.Nil(t, attached, "publish continues without the self view")
}

func TestLocalTrack_StopUnstarted(t *testing.T) {
	track, err := newLocalTrack(domain.MediaVideo, "alice", zerolog.Nop())
	require.NoError(t, err)
	track.stop()
	track.stop()
}

func pkt(seq uint16) *rtp.Packet {
	return &rtp.Packet{Header: rtp.Header{SequenceNumber: seq}}
}

func TestRemoteTrack_PlayBeforeBind(t *testing.T) {
	rt := newRemoteTrack(domain.PeerTrack{PeerID: "bob", Kind: domain.MediaVideo}, zerolog.Nop())
	stops := 0
	rt.onStop = func(*remoteTrack) { stops++ }
	var _ core.RemoteTrack = rt

	tile := &recordTarget{}
	require.NoError(t, rt.Play(tile))

	src := newChanReader()
	rt.bind(src)
	rt.bind(newChanReader())
	src.pkts <- pkt(1)
	src.pkts <- pkt(2)
	require.Eventually(t, func() bool { return tile.count() == 2 }, time.Second, 5*time.Millisecond)

	rt.Stop()
	rt.Stop()
	assert.Equal(t, 1, stops)
	assert.Zero(t, tile.closes(), "caller owned target is not closed")

	src.pkts <- pkt(3)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, tile.count())
	assert.NoError(t, rt.Play(&recordTarget{}), "play after stop is a no-op")
	close(src.pkts)
}

func TestRemoteTrack_AudioOutput(t *testing.T) {
	speaker := &recordTarget{}
	rt := newRemoteTrack(domain.PeerTrack{PeerID: "bob", Kind: domain.MediaAudio}, zerolog.Nop())
	rt.audioOut = func(peer domain.PeerID) (core.RenderTarget, error) {
		assert.Equal(t, domain.PeerID("bob"), peer)
		return speaker, nil
	}
	src := newChanReader()
	rt.bind(src)

	require.NoError(t, rt.Play(nil))
	src.pkts <- pkt(1)
	require.Eventually(t, func() bool { return speaker.count() == 1 }, time.Second, 5*time.Millisecond)

	rt.Stop()
	assert.Equal(t, 1, speaker.closes(), "adapter owned output is closed on stop")
	close(src.pkts)
}

func TestRemoteTrack_FailingTargetDetaches(t *testing.T) {
	rt := newRemoteTrack(domain.PeerTrack{PeerID: "bob", Kind: domain.MediaVideo}, zerolog.Nop())
	src := newChanReader()
	rt.bind(src)
	tile := &recordTarget{fail: true}
	require.NoError(t, rt.Play(tile))

	src.pkts <- pkt(1)
	require.Eventually(t, func() bool {
		rt.mu.Lock()
		defer rt.mu.Unlock()
		return rt.target == nil
	}, time.Second, 5*time.Millisecond)

	// a new tile resumes rendering on the running pump
	next := &recordTarget{}
	require.NoError(t, rt.Play(next))
	src.pkts <- pkt(2)
	require.Eventually(t, func() bool { return next.count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, rt.Play(nil), "nil detaches a video track")
	rt.Stop()
	close(src.pkts)
}
