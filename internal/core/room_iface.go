package core

import (
	"errors"

	"github.com/dkeye/Collab/internal/domain"
)

var ErrPeerTaken = errors.New("peer id already present in channel")

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID          domain.PeerID `json:"id"`
	DisplayName string        `json:"display_name"`
}

// RoomService is the core-facing API of a channel.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO
	SessionOf(peer domain.PeerID) (SessionID, bool)

	AddMember(sid SessionID, ms MemberSession) error
	RemoveMember(sid SessionID)
	Broadcast(from SessionID, data Frame) PublishResult
}

type RoomInfo struct {
	ID          domain.ChannelID `json:"id"`
	MemberCount int              `json:"client_count"`
}

type RoomManager interface {
	GetOrCreate(id domain.ChannelID) RoomService
	GetRoom(id domain.ChannelID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(id domain.ChannelID)
}
