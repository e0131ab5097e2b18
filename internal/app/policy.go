package app

import (
	"sync"

	"github.com/dkeye/Collab/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

type Policy interface {
	OnBackPressure(room core.RoomService, member core.MemberSession) BackpressureAction
	// Forget drops any state kept for member.
	Forget(member core.MemberSession)
}

// SimplePolicy kicks on the first overflow.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.RoomService, core.MemberSession) BackpressureAction {
	return KickMember
}

func (SimplePolicy) Forget(core.MemberSession) {}

// TolerantPolicy drops frames for a slow member and kicks it after
// MaxDrops overflows.
type TolerantPolicy struct {
	MaxDrops int

	mu    sync.Mutex
	drops map[core.MemberSession]int
}

func NewTolerantPolicy(maxDrops int) *TolerantPolicy {
	return &TolerantPolicy{MaxDrops: maxDrops, drops: make(map[core.MemberSession]int)}
}

func (p *TolerantPolicy) OnBackPressure(_ core.RoomService, member core.MemberSession) BackpressureAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drops[member]++
	if p.drops[member] > p.MaxDrops {
		delete(p.drops, member)
		return KickMember
	}
	return MarkSlow
}

func (p *TolerantPolicy) Forget(member core.MemberSession) {
	p.mu.Lock()
	delete(p.drops, member)
	p.mu.Unlock()
}
