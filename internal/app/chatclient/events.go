package chatclient

import (
	"relaychat/internal/app/protocol"
)

// State is the connection state of a Manager.
type State int

const (
	// StateIdle: never connected, or disconnected by the user.
	StateIdle State = iota

	// StateConnecting: a handshake is in flight.
	StateConnecting

	// StateOpen: the handshake succeeded and the join frame was sent.
	StateOpen

	// StateReconnecting: the connection failed and a retry is scheduled.
	StateReconnecting

	// StateClosed: every retry failed. Only an explicit Connect leaves this state.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is anything a Manager reports to its UI.
type Event interface {
	event()
}

// MessageEvent is a relayed chat message, the local user's own included.
type MessageEvent struct {
	Message protocol.MessageFrame
}

// PresenceEvent is the latest roster. Count is the number of open
// connections on the server and may exceed len(Users).
type PresenceEvent struct {
	Users []string
	Count int
}

// TypingEvent reports that a participant started or stopped typing.
type TypingEvent struct {
	UserID   string
	Username string
	IsTyping bool
}

// StatusEvent reports a state transition. Err is set when the transition
// was caused by a failure; on StateClosed it matches errs.ErrReconnectExhausted.
type StatusEvent struct {
	State   State
	Attempt int
	Err     error
}

func (MessageEvent) event()  {}
func (PresenceEvent) event() {}
func (TypingEvent) event()   {}
func (StatusEvent) event()   {}
