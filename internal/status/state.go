package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
)

// State represents the sync state of one open conversation.
type State string

const (
	Idle         State = "IDLE"
	Resolving    State = "RESOLVING"
	Loading      State = "LOADING"
	Live         State = "LIVE"
	Polling      State = "POLLING"
	Reconnecting State = "RECONNECTING"
	Closed       State = "CLOSED"
)

// validTransitions defines allowed state transitions.
// Idle is also the resting state of a conversation that has no server id yet.
var validTransitions = map[State][]State{
	Idle:         {Resolving, Loading, Live, Polling, Reconnecting, Closed},
	Resolving:    {Idle, Loading, Live, Polling, Reconnecting, Closed},
	Loading:      {Live, Polling, Reconnecting, Closed},
	Live:         {Reconnecting, Closed},
	Reconnecting: {Live, Polling, Closed},
	Polling:      {Closed},
	Closed:       {},
}

// Machine tracks and enforces sync state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
	subject string
}

// NewMachine creates a new state machine starting in Idle state. subject is
// carried in published events so listeners can tell conversations apart.
func NewMachine(b *bus.Bus, subject string) *Machine {
	return &Machine{
		current: Idle,
		bus:     b,
		subject: subject,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// SetSubject replaces the subject, e.g. once a conversation gets its server id.
func (m *Machine) SetSubject(subject string) {
	m.mu.Lock()
	m.subject = subject
	m.mu.Unlock()
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
// Transitioning to the current state is a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.bus.Publish(bus.Event{
		Kind:      bus.SyncStatusChanged,
		Timestamp: time.Now(),
		Payload: StatusChange{
			Subject: m.subject,
			From:    from,
			To:      to,
		},
	})
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	Subject string
	From    State
	To      State
}
