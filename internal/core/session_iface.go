package core

import "github.com/dkeye/Collab/internal/domain"

// SessionID is the client token presented by a signaling socket. It
// survives reconnects: a new socket under the same id replaces the old one.
type SessionID string

// Frame is one encoded signaling message.
type Frame []byte

// SignalConnection is the outbound side of a signaling socket. TrySend
// must not block; a full queue is reported to the backpressure policy.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession pairs a channel member with its signaling socket and its
// media connection. Rooms store it and fan out through Signal.
type MemberSession interface {
	Meta() *domain.Member
	Signal() SignalConnection
	Media() MediaConnection
	UpdateSignal(SignalConnection) MemberSession
	UpdateMedia(MediaConnection) MemberSession
}
