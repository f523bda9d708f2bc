package domain

import "sync/atomic"

// ConnectionState tracks where a session stands in its lifecycle:
// Connecting -> Backfilling -> Live -> Closed.
type ConnectionState int32

const (
	StateConnecting ConnectionState = iota
	StateBackfilling
	StateLive
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateBackfilling:
		return "backfilling"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is one live transport session. It is never persisted and never
// outlives its transport: a reconnect always produces a fresh Connection with
// a fresh SessionID.
type Connection struct {
	SessionID string
	Identity  string
	state     atomic.Int32
}

func NewConnection(sessionID, identity string) *Connection {
	c := &Connection{SessionID: sessionID, Identity: identity}
	c.state.Store(int32(StateConnecting))
	return c
}

func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Set moves the connection to the next state. Closed is terminal: once a
// session is torn down it never comes back.
func (c *Connection) Set(next ConnectionState) {
	for {
		current := c.state.Load()
		if ConnectionState(current) == StateClosed {
			return
		}
		if c.state.CompareAndSwap(current, int32(next)) {
			return
		}
	}
}
