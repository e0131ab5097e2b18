package sfu

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

type RelayManager struct {
	mu     sync.RWMutex
	relays map[Key]*Relay

	loops conc.WaitGroup
}

func NewRelayManager() *RelayManager {
	return &RelayManager{
		relays: make(map[Key]*Relay),
	}
}

// StartRelay creates a Relay for the stream key and starts its loop. An
// existing relay for the same key is replaced.
func (m *RelayManager) StartRelay(ctx context.Context, key Key, src RTPSource) *Relay {
	logger := log.With().
		Str("module", "relay").
		Str("sid", string(key.SID)).
		Str("kind", string(key.Kind)).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(key, src, cancel)

	m.mu.Lock()
	if old, ok := m.relays[key]; ok {
		logger.Info().Msg("replacing existing relay")
		old.markAllDelete()
		if old.cancel != nil {
			old.cancel()
		}
	}
	m.relays[key] = relay
	m.mu.Unlock()

	logger.Info().Msg("starting relay loop")
	m.loops.Go(func() {
		relay.loop(relayCtx, &logger)
		m.mu.Lock()
		if m.relays[key] == relay {
			delete(m.relays, key)
		}
		m.mu.Unlock()
	})
	return relay
}

func (m *RelayManager) relay(key Key) (*Relay, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.relays[key]
	return r, ok
}

// AddSubscriberIfAbsent attaches ot to the relay of key for dst. An
// existing live subscription is kept and false is reported.
func (m *RelayManager) AddSubscriberIfAbsent(key Key, dst core.SessionID, ot *OutTrack) bool {
	r, ok := m.relay(key)
	if !ok {
		return false
	}
	return r.AddOutTrackIfAbsent(dst, ot)
}

// Subscribed reports whether dst receives the stream of key.
func (m *RelayManager) Subscribed(key Key, dst core.SessionID) bool {
	r, ok := m.relay(key)
	if !ok {
		return false
	}
	_, ok = r.OutTrack(dst)
	return ok
}

// RemoveSubscriber detaches dst from the relay of key.
func (m *RelayManager) RemoveSubscriber(key Key, dst core.SessionID) (*OutTrack, bool) {
	r, ok := m.relay(key)
	if !ok {
		return nil, false
	}
	return r.RemoveOutTrack(dst)
}

// MarkSubscriberDelete stops forwarding every stream of src to dst.
func (m *RelayManager) MarkSubscriberDelete(src, dst core.SessionID) {
	for _, kind := range domain.MediaKinds {
		r, ok := m.relay(Key{SID: src, Kind: kind})
		if !ok {
			continue
		}
		if ot, ok := r.OutTrack(dst); ok {
			ot.MarkDelete()
		}
	}
}

// StopRelays stops every relay published by sid. It returns the kinds
// that were live and the subscriber out tracks they fed.
func (m *RelayManager) StopRelays(sid core.SessionID) ([]domain.MediaKind, []Detached) {
	var stopped []*Relay
	m.mu.Lock()
	for _, kind := range domain.MediaKinds {
		key := Key{SID: sid, Kind: kind}
		if r, ok := m.relays[key]; ok {
			delete(m.relays, key)
			stopped = append(stopped, r)
		}
	}
	m.mu.Unlock()

	kinds := make([]domain.MediaKind, 0, len(stopped))
	var detached []Detached
	for _, r := range stopped {
		detached = append(detached, r.detachAll()...)
		if r.cancel != nil {
			r.cancel()
		}
		kinds = append(kinds, r.Key.Kind)
	}
	return kinds, detached
}

// Kinds returns the kinds sid currently publishes, audio first.
func (m *RelayManager) Kinds(sid core.SessionID) []domain.MediaKind {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.MediaKind
	for _, kind := range domain.MediaKinds {
		if _, ok := m.relays[Key{SID: sid, Kind: kind}]; ok {
			out = append(out, kind)
		}
	}
	return out
}

// HasRelay reports whether a relay exists for key.
func (m *RelayManager) HasRelay(key Key) bool {
	_, ok := m.relay(key)
	return ok
}

// SrcTrack returns the source track for a given relay.
func (m *RelayManager) SrcTrack(key Key) (RTPSource, bool) {
	r, ok := m.relay(key)
	if !ok {
		return nil, false
	}
	return r.Src, true
}

// Close cancels every relay and waits for their loops. Loops blocked in
// ReadRTP exit once their PeerConnection is closed.
func (m *RelayManager) Close() {
	m.mu.Lock()
	all := make([]*Relay, 0, len(m.relays))
	for key, r := range m.relays {
		all = append(all, r)
		delete(m.relays, key)
	}
	m.mu.Unlock()
	for _, r := range all {
		r.markAllDelete()
		if r.cancel != nil {
			r.cancel()
		}
	}
	m.loops.Wait()
}
