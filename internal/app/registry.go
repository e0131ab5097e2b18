package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

type sessionEntry struct {
	Channel domain.ChannelID
	Session core.MemberSession
	Cancel  context.CancelFunc
}

// Registry maps connection sessions to identities and channels.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[core.SessionID]*sessionEntry
	identities map[core.SessionID]*domain.Identity
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:   make(map[core.SessionID]*sessionEntry),
		identities: make(map[core.SessionID]*domain.Identity),
	}
}

// GetOrCreateIdentity returns the identity of sid, creating a guest
// identity keyed by the session id on first use.
func (r *Registry) GetOrCreateIdentity(sid core.SessionID) *domain.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.identities[sid]; ok {
		return id
	}
	id := &domain.Identity{ID: domain.PeerID(sid), DisplayName: domain.DefaultDisplayName}
	r.identities[sid] = id
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("created guest identity")
	return id
}

// BindIdentity replaces the identity of sid, e.g. with the one presented on join.
func (r *Registry) BindIdentity(sid core.SessionID, id *domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[sid] = id
	if e, ok := r.sessions[sid]; ok {
		e.Session.Meta().SetIdentity(id)
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("peer", string(id.ID)).Msg("bound identity")
}

func (r *Registry) Rename(sid core.SessionID, name string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.identities[sid]
	if !ok {
		cur = &domain.Identity{ID: domain.PeerID(sid), DisplayName: domain.DefaultDisplayName}
	}
	next, err := cur.WithDisplayName(name)
	if err != nil {
		return nil, err
	}
	r.identities[sid] = next
	if e, ok := r.sessions[sid]; ok {
		e.Session.Meta().SetIdentity(next)
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("display_name", name).Msg("renamed")
	return next, nil
}

func (r *Registry) BindSignal(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[sid]; ok && old.Cancel != nil {
		old.Cancel()
	}
	r.sessions[sid] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
}

func (r *Registry) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

// Unbind forgets sid, but only if sess still is its current session: a
// reconnect may have replaced it already.
func (r *Registry) Unbind(sid core.SessionID, sess core.MemberSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok && e.Session == sess {
		delete(r.sessions, sid)
		delete(r.identities, sid)
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	}
}

func (r *Registry) ChannelOf(sid core.SessionID) (domain.ChannelID, core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok || entry.Channel == "" {
		return "", nil, false
	}
	return entry.Channel, entry.Session, true
}

func (r *Registry) UpdateChannel(sid core.SessionID, ch domain.ChannelID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return false
	}
	entry.Channel = ch
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("channel", string(ch)).Msg("updated channel")
	return true
}

func (r *Registry) RemoveChannel(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[sid]; ok {
		entry.Channel = ""
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("removed channel association")
}

type MemberSnap struct {
	SID     core.SessionID
	Session core.MemberSession
}

func (r *Registry) MembersOf(ch domain.ChannelID) []MemberSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberSnap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if e.Channel == ch {
			out = append(out, MemberSnap{SID: sid, Session: e.Session})
		}
	}
	return out
}

// RoomMates returns the other members of the channel sid is in.
func (r *Registry) RoomMates(sid core.SessionID) []MemberSnap {
	ch, _, ok := r.ChannelOf(sid)
	if !ok {
		return nil
	}
	all := r.MembersOf(ch)
	out := all[:0]
	for _, s := range all {
		if s.SID != sid {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
