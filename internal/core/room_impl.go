package core

import (
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/domain"
)

// roomImpl is a threadsafe in-memory channel.
// It never closes adapter-owned resources.
type roomImpl struct {
	room   *domain.Room
	mu     sync.RWMutex
	bySID  map[SessionID]MemberSession
	byPeer map[domain.PeerID]SessionID
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:   room,
		bySID:  make(map[SessionID]MemberSession),
		byPeer: make(map[domain.PeerID]SessionID),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) SessionOf(peer domain.PeerID) (SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byPeer[peer]
	return sid, ok
}

// AddMember fails with ErrPeerTaken when another session already holds
// the peer id. Re-adding the same session is a no-op.
func (r *roomImpl) AddMember(sid SessionID, ms MemberSession) error {
	p := ms.Meta().Identity().ID
	r.mu.Lock()
	defer r.mu.Unlock()
	if holder, ok := r.byPeer[p]; ok && holder != sid {
		return ErrPeerTaken
	}
	r.bySID[sid] = ms
	r.byPeer[p] = sid
	log.Info().Str("module", "core.room").Str("sid", string(sid)).Str("peer", string(p)).Msg("member added")
	return nil
}

func (r *roomImpl) RemoveMember(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ms, ok := r.bySID[sid]; ok {
		p := ms.Meta().Identity().ID
		if r.byPeer[p] == sid {
			delete(r.byPeer, p)
		}
	}
	delete(r.bySID, sid)
	log.Info().Str("module", "core.room").Str("sid", string(sid)).Msg("member removed")
}

func (r *roomImpl) Broadcast(from SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range r.bySID {
		if sid == from {
			continue
		}
		sc := m.Signal()
		if sc == nil {
			continue
		}
		if err := sc.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// MembersSnapshot is sorted by peer id.
func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.bySID))
	for _, ms := range r.bySID {
		id := ms.Meta().Identity()
		out = append(out, MemberDTO{ID: id.ID, DisplayName: id.DisplayName})
	}
	slices.SortFunc(out, func(a, b MemberDTO) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out
}
