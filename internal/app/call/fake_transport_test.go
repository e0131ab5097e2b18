package call

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/rtp"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

type fakeLocalTrack struct {
	id   string
	kind domain.MediaKind

	mu     sync.Mutex
	target core.RenderTarget
}

func (t *fakeLocalTrack) ID() string             { return t.id }
func (t *fakeLocalTrack) Kind() domain.MediaKind { return t.kind }
func (t *fakeLocalTrack) Attach(target core.RenderTarget) {
	t.mu.Lock()
	t.target = target
	t.mu.Unlock()
}

func (t *fakeLocalTrack) attached() core.RenderTarget {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target
}

type fakeRemoteTrack struct {
	peer domain.PeerID
	kind domain.MediaKind
}

func (t *fakeRemoteTrack) PeerID() domain.PeerID        { return t.peer }
func (t *fakeRemoteTrack) Kind() domain.MediaKind       { return t.kind }
func (t *fakeRemoteTrack) Play(core.RenderTarget) error { return nil }
func (t *fakeRemoteTrack) Stop()                        {}

// fakeTransport records every call. Hooks run before the default behavior
// and may block on ctx to emulate slow vendor calls.
type fakeTransport struct {
	mu         sync.Mutex
	joinErr    error
	acquireErr error
	publishErr error
	partial    bool
	present    []domain.PeerTrack
	subErr     map[domain.PeerID]error
	subscribes map[domain.PeerTrack]int
	released   map[string]int
	joins      int
	leaves     int

	publishHook func(ctx context.Context) error

	events chan domain.PresenceEvent
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		subErr:     make(map[domain.PeerID]error),
		subscribes: make(map[domain.PeerTrack]int),
		released:   make(map[string]int),
		events:     make(chan domain.PresenceEvent, 16),
	}
}

func (f *fakeTransport) Join(ctx context.Context, _ string, _ domain.ChannelID, _ string, _ domain.PeerID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins++
	return f.joinErr
}

func (f *fakeTransport) AcquireLocalTracks(context.Context) (core.LocalTracks, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	audio := &fakeLocalTrack{id: "mic", kind: domain.MediaAudio}
	video := &fakeLocalTrack{id: "cam", kind: domain.MediaVideo}
	if f.acquireErr != nil {
		if f.partial {
			return core.LocalTracks{Audio: audio}, f.acquireErr
		}
		return core.LocalTracks{}, f.acquireErr
	}
	return core.LocalTracks{Audio: audio, Video: video}, nil
}

func (f *fakeTransport) Publish(ctx context.Context, _ []core.LocalTrack) error {
	f.mu.Lock()
	hook := f.publishHook
	err := f.publishErr
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx)
	}
	return err
}

func (f *fakeTransport) EnumeratePresentPeers(context.Context) ([]domain.PeerTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.PeerTrack(nil), f.present...), nil
}

func (f *fakeTransport) Subscribe(_ context.Context, peer domain.PeerID, kind domain.MediaKind) (core.RemoteTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes[domain.PeerTrack{PeerID: peer, Kind: kind}]++
	if err := f.subErr[peer]; err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", peer, err)
	}
	return &fakeRemoteTrack{peer: peer, kind: kind}, nil
}

func (f *fakeTransport) Events() (<-chan domain.PresenceEvent, func()) {
	return f.events, func() {}
}

func (f *fakeTransport) Leave(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves++
	return nil
}

func (f *fakeTransport) ReleaseTrack(track core.LocalTrack) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released[track.ID()]++
}

func (f *fakeTransport) subscribeCount(peer domain.PeerID, kind domain.MediaKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes[domain.PeerTrack{PeerID: peer, Kind: kind}]
}

func (f *fakeTransport) releaseCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released[id]
}

func (f *fakeTransport) leaveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leaves
}

type nopTarget struct{}

func (nopTarget) WriteRTP(*rtp.Packet) error { return nil }
func (nopTarget) Close() error               { return nil }
