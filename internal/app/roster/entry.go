package roster

import (
	"context"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

// kindState is one media kind of a peer: in flight while track is nil.
type kindState struct {
	track core.RemoteTrack
}

type entry struct {
	peer domain.PeerID
	seq  uint64

	// ctx is cancelled when the entry leaves the roster; it aborts the
	// in-flight subscribes and any attach still waiting for a target.
	ctx    context.Context
	cancel context.CancelFunc

	kinds         map[domain.MediaKind]*kindState
	videoAttached bool
}

func newEntry(peer domain.PeerID, seq uint64) *entry {
	ctx, cancel := context.WithCancel(context.Background())
	return &entry{
		peer:   peer,
		seq:    seq,
		ctx:    ctx,
		cancel: cancel,
		kinds:  make(map[domain.MediaKind]*kindState, len(domain.MediaKinds)),
	}
}

func (e *entry) has(kind domain.MediaKind) bool {
	ks, ok := e.kinds[kind]
	return ok && ks.track != nil
}

func (e *entry) subscribed() bool {
	for _, ks := range e.kinds {
		if ks.track != nil {
			return true
		}
	}
	return false
}

type reservation struct {
	entry *entry
	kind  domain.MediaKind
	state *kindState
}
