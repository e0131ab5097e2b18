package sfu

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

// chanSource yields the packets pushed into it and io.EOF once closed.
type chanSource struct {
	pkts chan *rtp.Packet
}

func newChanSource() *chanSource { return &chanSource{pkts: make(chan *rtp.Packet, 16)} }

func (s *chanSource) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	p, ok := <-s.pkts
	if !ok {
		return nil, nil, io.EOF
	}
	return p, nil, nil
}

func (s *chanSource) Codec() webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}}
}

type fakeSink struct {
	mu   sync.Mutex
	got  []uint16
	fail bool
}

func (s *fakeSink) WriteRTP(p *rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink closed")
	}
	s.got = append(s.got, p.SequenceNumber)
	return nil
}

func (s *fakeSink) seqs() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint16(nil), s.got...)
}

// attach puts a sink with its own writer on r, bypassing OutTrack.Track.
func attach(r *Relay, dst core.SessionID, w RTPSink, ot *OutTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[dst] = sink{w: w, ot: ot}
}

func TestRelay_Forward(t *testing.T) {
	relay := NewRelay(Key{SID: "pub", Kind: domain.MediaAudio}, newChanSource(), nil)
	logger := zerologNop()

	live := &fakeSink{}
	gone := &fakeSink{}
	broken := &fakeSink{fail: true}
	liveOT := &OutTrack{}
	goneOT := &OutTrack{}
	goneOT.MarkDelete()
	brokenOT := &OutTrack{}

	attach(relay, "a", live, liveOT)
	attach(relay, "b", gone, goneOT)
	attach(relay, "c", broken, brokenOT)

	relay.forward(&rtp.Packet{Header: rtp.Header{SequenceNumber: 1}}, logger)
	relay.forward(&rtp.Packet{Header: rtp.Header{SequenceNumber: 2}}, logger)

	assert.Equal(t, []uint16{1, 2}, live.seqs())
	assert.Empty(t, gone.seqs())
	_, ok := relay.OutTrack("b")
	assert.False(t, ok, "deleted sink is dropped")
	assert.Equal(t, TrackStateDelete, brokenOT.GetState())
	_, ok = relay.OutTrack("c")
	assert.False(t, ok, "failed sink is dropped")

	ot, ok := relay.RemoveOutTrack("a")
	require.True(t, ok)
	assert.Same(t, liveOT, ot)
	assert.Equal(t, TrackStateDelete, ot.GetState())

	relay.forward(&rtp.Packet{Header: rtp.Header{SequenceNumber: 3}}, logger)
	assert.Equal(t, []uint16{1, 2}, live.seqs())
}

func TestRelay_AddOutTrackIfAbsent(t *testing.T) {
	relay := NewRelay(Key{SID: "pub", Kind: domain.MediaVideo}, newChanSource(), nil)

	first := &OutTrack{}
	assert.True(t, relay.AddOutTrackIfAbsent("dst", first))
	assert.False(t, relay.AddOutTrackIfAbsent("dst", &OutTrack{}))

	first.MarkDelete()
	second := &OutTrack{}
	assert.True(t, relay.AddOutTrackIfAbsent("dst", second), "deleted track can be replaced")
	got, ok := relay.OutTrack("dst")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestRelayManager_Lifecycle(t *testing.T) {
	m := NewRelayManager()
	audio := newChanSource()
	video := newChanSource()

	audioKey := Key{SID: "pub", Kind: domain.MediaAudio}
	videoKey := Key{SID: "pub", Kind: domain.MediaVideo}
	m.StartRelay(context.Background(), videoKey, video)
	relay := m.StartRelay(context.Background(), audioKey, audio)

	assert.Equal(t, []domain.MediaKind{domain.MediaAudio, domain.MediaVideo}, m.Kinds("pub"))
	assert.True(t, m.HasRelay(audioKey))
	src, ok := m.SrcTrack(audioKey)
	require.True(t, ok)
	assert.Same(t, audio, src)

	sink := &fakeSink{}
	ot := &OutTrack{}
	attach(relay, "sub", sink, ot)
	assert.True(t, m.Subscribed(audioKey, "sub"))
	assert.False(t, m.AddSubscriberIfAbsent(audioKey, "sub", &OutTrack{}))
	assert.False(t, m.AddSubscriberIfAbsent(Key{SID: "nobody", Kind: domain.MediaAudio}, "sub", &OutTrack{}))

	audio.pkts <- &rtp.Packet{Header: rtp.Header{SequenceNumber: 7}}
	require.Eventually(t, func() bool { return len(sink.seqs()) == 1 }, time.Second, 5*time.Millisecond)

	m.MarkSubscriberDelete("pub", "sub")
	assert.False(t, m.Subscribed(audioKey, "sub"))

	kinds, detached := m.StopRelays("pub")
	assert.ElementsMatch(t, []domain.MediaKind{domain.MediaAudio, domain.MediaVideo}, kinds)
	require.Len(t, detached, 1)
	assert.Same(t, ot, detached[0].OT)
	assert.Equal(t, core.SessionID("sub"), detached[0].Dst)
	assert.Empty(t, m.Kinds("pub"))
	kinds, _ = m.StopRelays("pub")
	assert.Empty(t, kinds)

	close(audio.pkts)
	close(video.pkts)
	m.Close()
}

func TestRelayManager_SourceEndRemovesRelay(t *testing.T) {
	m := NewRelayManager()
	src := newChanSource()
	key := Key{SID: "pub", Kind: domain.MediaAudio}
	m.StartRelay(context.Background(), key, src)

	close(src.pkts)
	require.Eventually(t, func() bool { return !m.HasRelay(key) }, time.Second, 5*time.Millisecond)
	m.Close()
}

func TestRelayManager_Replace(t *testing.T) {
	m := NewRelayManager()
	key := Key{SID: "pub", Kind: domain.MediaAudio}
	first := newChanSource()
	old := m.StartRelay(context.Background(), key, first)
	ot := &OutTrack{}
	attach(old, "sub", &fakeSink{}, ot)

	second := newChanSource()
	m.StartRelay(context.Background(), key, second)
	assert.Equal(t, TrackStateDelete, ot.GetState())

	close(first.pkts)
	src, ok := m.SrcTrack(key)
	require.True(t, ok)
	assert.Same(t, second, src, "old loop exit keeps the replacement")

	close(second.pkts)
	m.Close()
}

func zerologNop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestRelayManager_StopRelaysDetachesSubscribers(t *testing.T) {
	m := NewRelayManager()
	audio := newChanSource()
	video := newChanSource()
	audioKey := Key{SID: "pub", Kind: domain.MediaAudio}
	videoKey := Key{SID: "pub", Kind: domain.MediaVideo}
	m.StartRelay(context.Background(), audioKey, audio)
	m.StartRelay(context.Background(), videoKey, video)

	aliceAudio, aliceVideo, carolAudio := &OutTrack{}, &OutTrack{}, &OutTrack{}
	require.True(t, m.AddSubscriberIfAbsent(audioKey, "alice", aliceAudio))
	require.True(t, m.AddSubscriberIfAbsent(videoKey, "alice", aliceVideo))
	require.True(t, m.AddSubscriberIfAbsent(audioKey, "carol", carolAudio))

	_, detached := m.StopRelays("pub")
	assert.ElementsMatch(t, []Detached{
		{Dst: "alice", Key: audioKey, OT: aliceAudio},
		{Dst: "alice", Key: videoKey, OT: aliceVideo},
		{Dst: "carol", Key: audioKey, OT: carolAudio},
	}, detached)
	for _, d := range detached {
		assert.Equal(t, TrackStateDelete, d.OT.GetState())
	}
	assert.False(t, m.Subscribed(audioKey, "alice"))

	close(audio.pkts)
	close(video.pkts)
	m.Close()
}

func TestOutTrack_State(t *testing.T) {
	ot := NewOutTrack(nil, nil)
	assert.Equal(t, TrackStateOk, ot.GetState())
	assert.Equal(t, "ok", ot.GetState().String())
	ot.MarkDelete()
	assert.Equal(t, TrackStateDelete, ot.GetState())
	assert.Equal(t, "delete", ot.GetState().String())
}
