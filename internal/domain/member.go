package domain

import "sync/atomic"

// Member represents an identity's participation meta for a channel.
// No transport or lifecycle logic here. The identity is swapped as a
// whole on rename, so readers never see a half updated value.
type Member struct {
	identity atomic.Pointer[Identity]
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(identity *Identity) *Member {
	m := &Member{}
	m.identity.Store(identity)
	return m
}

func (m *Member) Identity() *Identity { return m.identity.Load() }

func (m *Member) SetIdentity(identity *Identity) { m.identity.Store(identity) }
