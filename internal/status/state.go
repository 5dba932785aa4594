// Package status tracks the lifecycle of the persistent marketplace
// connection and enforces legal transitions between its states.
package status

import (
	"fmt"
	"slices"
	"sync"
)

// State represents a connection lifecycle state.
type State string

const (
	Closed       State = "CLOSED"
	Connecting   State = "CONNECTING"
	Open         State = "OPEN"
	Reconnecting State = "RECONNECTING"
	Closing      State = "CLOSING"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Closed:       {Connecting},
	Connecting:   {Open, Reconnecting, Closing, Closed},
	Open:         {Reconnecting, Closing, Closed},
	Reconnecting: {Connecting, Closing, Closed},
	Closing:      {Closed},
}

// ChangeFunc observes every successful transition.
type ChangeFunc func(from, to State)

// Machine tracks and enforces connection state transitions.
type Machine struct {
	mu       sync.RWMutex
	current  State
	onChange ChangeFunc
}

// NewMachine creates a machine starting in Closed state. onChange may be
// nil; when set it is invoked synchronously after each transition.
func NewMachine(onChange ChangeFunc) *Machine {
	return &Machine{
		current:  Closed,
		onChange: onChange,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns an error if the
// transition is not allowed from the current state.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		from := m.current
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	from := m.current
	m.current = to
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(from, to)
	}
	return nil
}
