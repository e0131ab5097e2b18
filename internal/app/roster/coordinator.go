// Package roster keeps the authoritative set of remote peers of one call.
//
// Peer information arrives from two racing sources: the snapshot of peers
// already present at activation and the incremental presence events. Every
// mutation is keyed on the peer id and idempotent, so admits and dismisses
// may interleave in any order without duplicating or resurrecting entries.
package roster

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/leandro-lugaresi/hub"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

// TopicRosterChanged is published on the hub after every visible change.
const TopicRosterChanged = "call.roster.changed"

var errNoTrack = errors.New("transport returned no track")

// Subscriber is the part of the media transport the roster drives.
type Subscriber interface {
	Subscribe(ctx context.Context, peerID domain.PeerID, kind domain.MediaKind) (core.RemoteTrack, error)
}

type Coordinator struct {
	sub    Subscriber
	hub    *hub.Hub
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[domain.PeerID]*entry
	targets map[domain.PeerID]core.RenderTarget
	seq     uint64

	wg conc.WaitGroup
}

// New creates an empty roster. h may be nil.
func New(sub Subscriber, h *hub.Hub) *Coordinator {
	return &Coordinator{
		sub:     sub,
		hub:     h,
		logger:  log.With().Str("module", "call.roster").Logger(),
		entries: make(map[domain.PeerID]*entry),
		targets: make(map[domain.PeerID]core.RenderTarget),
	}
}

// Admit subscribes kind of peer unless it is already subscribed or in
// flight, and blocks until the subscribe settled. A subscribe failure is
// returned wrapped in domain.ErrSubscribe and leaves the rest untouched.
func (c *Coordinator) Admit(ctx context.Context, peer domain.PeerID, kind domain.MediaKind) error {
	r, ok := c.reserve(peer, kind)
	if !ok {
		return nil
	}
	return c.subscribe(ctx, r)
}

// AdmitAsync reserves synchronously, so the order of calls is the order
// of roster mutations, and subscribes in the background.
func (c *Coordinator) AdmitAsync(ctx context.Context, peer domain.PeerID, kind domain.MediaKind) {
	r, ok := c.reserve(peer, kind)
	if !ok {
		return
	}
	c.wg.Go(func() {
		_ = c.subscribe(ctx, r)
	})
}

// Withdraw clears one kind of peer. The entry goes away once no kind is
// left, subscribed or in flight.
func (c *Coordinator) Withdraw(peer domain.PeerID, kind domain.MediaKind) {
	c.mu.Lock()
	e, ok := c.entries[peer]
	if !ok {
		c.mu.Unlock()
		return
	}
	ks, ok := e.kinds[kind]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(e.kinds, kind)
	if kind == domain.MediaVideo {
		e.videoAttached = false
	}
	var stop []core.RemoteTrack
	if ks.track != nil {
		stop = append(stop, ks.track)
	}
	if len(e.kinds) == 0 {
		stop = append(stop, c.removeLocked(e)...)
	}
	c.mu.Unlock()

	stopAll(stop)
	c.logger.Info().Str("peer", string(peer)).Str("kind", string(kind)).Msg("kind withdrawn")
	c.publishChanged()
}

// Dismiss removes peer unconditionally. Unknown peers are a no-op.
func (c *Coordinator) Dismiss(peer domain.PeerID) {
	c.mu.Lock()
	e, ok := c.entries[peer]
	if !ok {
		c.mu.Unlock()
		return
	}
	stop := c.removeLocked(e)
	delete(c.targets, peer)
	c.mu.Unlock()

	stopAll(stop)
	c.logger.Info().Str("peer", string(peer)).Msg("peer dismissed")
	c.publishChanged()
}

// RegisterRenderTarget is the UI signal that the tile for peer exists.
// A subscribed video waiting for it is attached right away.
func (c *Coordinator) RegisterRenderTarget(peer domain.PeerID, target core.RenderTarget) {
	if target == nil {
		c.UnregisterRenderTarget(peer)
		return
	}
	c.mu.Lock()
	c.targets[peer] = target
	if e, ok := c.entries[peer]; ok {
		if ks, ok := e.kinds[domain.MediaVideo]; ok && ks.track != nil {
			c.attachLocked(e, ks.track, target)
		}
	}
	c.mu.Unlock()
	c.publishChanged()
}

func (c *Coordinator) UnregisterRenderTarget(peer domain.PeerID) {
	c.mu.Lock()
	if _, ok := c.targets[peer]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.targets, peer)
	if e, ok := c.entries[peer]; ok && e.videoAttached {
		if ks, ok := e.kinds[domain.MediaVideo]; ok && ks.track != nil {
			if err := ks.track.Play(nil); err != nil {
				c.logger.Warn().Err(err).Str("peer", string(peer)).Msg("video detach failed")
			}
		}
		e.videoAttached = false
	}
	c.mu.Unlock()
	c.publishChanged()
}

// Snapshot returns the peers with at least one subscribed kind, in the
// order they were first admitted.
func (c *Coordinator) Snapshot() []domain.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Len reports the number of visible participants.
func (c *Coordinator) Len() int {
	return len(c.Snapshot())
}

// Reset drops every entry and render target, stopping their tracks.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	var stop []core.RemoteTrack
	for _, e := range c.entries {
		stop = append(stop, c.removeLocked(e)...)
	}
	clear(c.targets)
	c.mu.Unlock()

	stopAll(stop)
	c.logger.Info().Int("stopped_tracks", len(stop)).Msg("roster reset")
	c.publishChanged()
}

// Wait blocks until background subscribes started by AdmitAsync returned.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) reserve(peer domain.PeerID, kind domain.MediaKind) (reservation, bool) {
	if !kind.Valid() {
		c.logger.Warn().Str("peer", string(peer)).Str("kind", string(kind)).Msg("admit with unknown kind ignored")
		return reservation{}, false
	}
	if err := peer.Validate(); err != nil {
		c.logger.Warn().Err(err).Str("peer", string(peer)).Msg("admit with bad peer id ignored")
		return reservation{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[peer]
	if !ok {
		c.seq++
		e = newEntry(peer, c.seq)
		c.entries[peer] = e
	}
	if _, dup := e.kinds[kind]; dup {
		c.logger.Debug().Str("peer", string(peer)).Str("kind", string(kind)).Msg("duplicate admit skipped")
		return reservation{}, false
	}
	ks := &kindState{}
	e.kinds[kind] = ks
	return reservation{entry: e, kind: kind, state: ks}, true
}

func (c *Coordinator) subscribe(ctx context.Context, r reservation) error {
	peer := r.entry.peer
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopWatch := context.AfterFunc(r.entry.ctx, cancel)
	defer stopWatch()

	track, err := c.sub.Subscribe(subCtx, peer, r.kind)
	if err == nil && track == nil {
		err = errNoTrack
	}

	c.mu.Lock()
	if !c.currentLocked(r) {
		c.mu.Unlock()
		if err == nil && track != nil {
			track.Stop()
		}
		c.logger.Debug().Str("peer", string(peer)).Str("kind", string(r.kind)).Msg("stale subscribe result discarded")
		return nil
	}
	if err != nil {
		delete(r.entry.kinds, r.kind)
		var stop []core.RemoteTrack
		if len(r.entry.kinds) == 0 {
			stop = c.removeLocked(r.entry)
		}
		c.mu.Unlock()
		stopAll(stop)
		c.logger.Warn().Err(err).Str("peer", string(peer)).Str("kind", string(r.kind)).Msg("subscribe failed")
		return fmt.Errorf("%w: peer %s %s: %w", domain.ErrSubscribe, peer, r.kind, err)
	}

	r.state.track = track
	switch r.kind {
	case domain.MediaAudio:
		if err := track.Play(nil); err != nil {
			c.logger.Warn().Err(err).Str("peer", string(peer)).Msg("audio playback failed")
		}
	case domain.MediaVideo:
		if target, ok := c.targets[peer]; ok {
			c.attachLocked(r.entry, track, target)
		} else {
			c.logger.Debug().Str("peer", string(peer)).Msg("video waits for render target")
		}
	}
	c.mu.Unlock()

	c.logger.Info().Str("peer", string(peer)).Str("kind", string(r.kind)).Msg("subscribed")
	c.publishChanged()
	return nil
}

// currentLocked reports whether the reservation still owns its slot, i.e.
// the peer was neither dismissed nor had the kind withdrawn meanwhile.
func (c *Coordinator) currentLocked(r reservation) bool {
	e, ok := c.entries[r.entry.peer]
	if !ok || e != r.entry {
		return false
	}
	return e.kinds[r.kind] == r.state
}

func (c *Coordinator) attachLocked(e *entry, track core.RemoteTrack, target core.RenderTarget) {
	if err := track.Play(target); err != nil {
		c.logger.Warn().Err(err).Str("peer", string(e.peer)).Msg("video attach failed")
		return
	}
	e.videoAttached = true
}

// removeLocked deletes e, cancels whatever is pending on it and returns
// the tracks the caller must stop once the lock is released.
func (c *Coordinator) removeLocked(e *entry) []core.RemoteTrack {
	if cur, ok := c.entries[e.peer]; ok && cur == e {
		delete(c.entries, e.peer)
	}
	e.cancel()
	tracks := make([]core.RemoteTrack, 0, len(e.kinds))
	for _, ks := range e.kinds {
		if ks.track != nil {
			tracks = append(tracks, ks.track)
		}
	}
	clear(e.kinds)
	e.videoAttached = false
	return tracks
}

func (c *Coordinator) snapshotLocked() []domain.Participant {
	visible := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.subscribed() {
			visible = append(visible, e)
		}
	}
	slices.SortFunc(visible, func(a, b *entry) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]domain.Participant, 0, len(visible))
	for _, e := range visible {
		_, ready := c.targets[e.peer]
		out = append(out, domain.Participant{
			PeerID:            e.peer,
			HasAudio:          e.has(domain.MediaAudio),
			HasVideo:          e.has(domain.MediaVideo),
			RenderTargetReady: ready,
		})
	}
	return out
}

func (c *Coordinator) publishChanged() {
	if c.hub == nil {
		return
	}
	c.hub.Publish(hub.Message{
		Name: TopicRosterChanged,
		Fields: hub.Fields{
			"roster": c.Snapshot(),
		},
	})
}

func stopAll(tracks []core.RemoteTrack) {
	for _, t := range tracks {
		t.Stop()
	}
}
