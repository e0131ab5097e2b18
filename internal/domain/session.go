package domain

type SessionState int32

const (
	SessionIdle SessionState = iota
	SessionJoining
	SessionActive
	SessionLeaving
	SessionClosed
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionJoining:
		return "joining"
	case SessionActive:
		return "active"
	case SessionLeaving:
		return "leaving"
	case SessionClosed:
		return "closed"
	case SessionFailed:
		return "failed"
	}
	return "unknown"
}

// IsTerminal reports whether a session in this state can never be reused.
func (s SessionState) IsTerminal() bool {
	return s == SessionClosed || s == SessionFailed
}
