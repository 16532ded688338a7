// Package vpn provides OpenVPN session management functionality.
// This file contains the session state machine states.
package vpn

// SessionState represents the state of the managed OpenVPN session.
type SessionState int

const (
	// StateIdle means no session has been started yet.
	StateIdle SessionState = iota
	// StateStarting covers spawn and the credential handshake.
	StateStarting
	// StateAwaitingChallenge means the server sent a challenge and the
	// session is paused until a response is supplied.
	StateAwaitingChallenge
	// StateConnected means the tunnel is established.
	StateConnected
	// StateDisconnecting means a stop was requested and is in progress.
	StateDisconnecting
	// StateFailed means the session ended with an error.
	StateFailed
	// StateDisconnected means the session ended by request.
	StateDisconnected
)

// String returns a human-readable state string.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStarting:
		return "Connecting..."
	case StateAwaitingChallenge:
		return "Awaiting Challenge"
	case StateConnected:
		return "Connected"
	case StateDisconnecting:
		return "Disconnecting..."
	case StateFailed:
		return "Failed"
	case StateDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// CanStart reports whether a new session may be started from this state.
func (s SessionState) CanStart() bool {
	switch s {
	case StateIdle, StateFailed, StateDisconnected:
		return true
	default:
		return false
	}
}

// Active reports whether a session is underway, including teardown.
func (s SessionState) Active() bool {
	switch s {
	case StateStarting, StateAwaitingChallenge, StateConnected, StateDisconnecting:
		return true
	default:
		return false
	}
}
