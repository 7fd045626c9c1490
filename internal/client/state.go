package client

import (
	"fmt"
	"sync/atomic"
)

// State is the lifecycle state of a connection.
type State int32

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
	StateClosing
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// stateMachine holds the connection state. Every change is reported to
// notify, outside of any lock.
//
//	CLOSED -> CONNECTING -> OPEN -> CLOSING -> CLOSED
//	           CONNECTING -> CLOSED   (connect failed)
type stateMachine struct {
	v      atomic.Int32
	notify func(from, to State)
}

func (m *stateMachine) Load() State {
	return State(m.v.Load())
}

// transition moves from -> to only if the current state is from.
func (m *stateMachine) transition(from, to State) bool {
	if !m.v.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	m.changed(from, to)
	return true
}

// set forces the state and returns the previous one.
func (m *stateMachine) set(to State) State {
	from := State(m.v.Swap(int32(to)))
	if from != to {
		m.changed(from, to)
	}
	return from
}

func (m *stateMachine) changed(from, to State) {
	if m.notify != nil {
		m.notify(from, to)
	}
}
