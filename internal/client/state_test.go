package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_String(t *testing.T) {
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "CONNECTING", StateConnecting.String())
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "CLOSING", StateClosing.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestStateMachine(t *testing.T) {
	type change struct{ from, to State }
	var got []change
	m := stateMachine{notify: func(from, to State) { got = append(got, change{from, to}) }}

	assert.Equal(t, StateClosed, m.Load())
	assert.False(t, m.transition(StateOpen, StateClosing), "transition from the wrong state must fail")
	assert.True(t, m.transition(StateClosed, StateConnecting))
	assert.True(t, m.transition(StateConnecting, StateOpen))

	assert.Equal(t, StateOpen, m.set(StateClosed))
	assert.Equal(t, StateClosed, m.set(StateClosed), "set to the same state")

	assert.Equal(t, []change{
		{StateClosed, StateConnecting},
		{StateConnecting, StateOpen},
		{StateOpen, StateClosed},
	}, got)
}

func TestDirection_String(t *testing.T) {
	assert.Equal(t, "inbound", Inbound.String())
	assert.Equal(t, "outbound", Outbound.String())
}
