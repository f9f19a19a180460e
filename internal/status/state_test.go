package status

import (
	"testing"

	"github.com/matheus3301/chatsync/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil, "c1")
	if m.Current() != Idle {
		t.Errorf("initial state = %s, want IDLE", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Idle, Resolving},
		{Idle, Live},
		{Idle, Polling},
		{Resolving, Loading},
		{Resolving, Idle},
		{Loading, Live},
		{Loading, Polling},
		{Live, Reconnecting},
		{Reconnecting, Live},
		{Reconnecting, Polling},
		{Polling, Closed},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil, "c1")
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil, "c1")
	walkTo(t, m, Polling)
	if err := m.Transition(Live); err == nil {
		t.Error("Transition(POLLING -> LIVE) should fail; fallback is one-way")
	}
}

func TestClosedIsTerminal(t *testing.T) {
	m := NewMachine(nil, "c1")
	if err := m.Transition(Closed); err != nil {
		t.Fatal(err)
	}
	for _, s := range []State{Idle, Resolving, Loading, Live, Polling, Reconnecting} {
		if err := m.Transition(s); err == nil {
			t.Errorf("Transition(CLOSED -> %s) should fail", s)
		}
	}
}

func TestSameStateIsNoop(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	m := NewMachine(b, "c1")
	if err := m.Transition(Idle); err != nil {
		t.Fatalf("Transition(IDLE -> IDLE) error = %v", err)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected event for no-op transition: %v", evt)
	default:
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	m := NewMachine(b, "c1")
	if err := m.Transition(Resolving); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.SyncStatusChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.SyncStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Idle || change.To != Resolving {
		t.Errorf("change = %v -> %v, want IDLE -> RESOLVING", change.From, change.To)
	}
	if change.Subject != "c1" {
		t.Errorf("subject = %q, want c1", change.Subject)
	}
}

// TestPushLifecycleWithFallback walks a push session that loses its channel
// and ends up polling.
func TestPushLifecycleWithFallback(t *testing.T) {
	m := NewMachine(nil, "c1")

	steps := []State{Resolving, Loading, Live, Reconnecting, Live, Reconnecting, Polling, Closed}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
}

// TestDeferredConversationLifecycle covers a conversation with no server id:
// it rests in IDLE until the first send creates it.
func TestDeferredConversationLifecycle(t *testing.T) {
	m := NewMachine(nil, "")

	steps := []State{Resolving, Idle, Polling}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	m.SetSubject("c7")
	if m.Current() != Polling {
		t.Errorf("final state = %s, want POLLING", m.Current())
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Idle:         {},
		Resolving:    {Resolving},
		Loading:      {Resolving, Loading},
		Live:         {Resolving, Loading, Live},
		Reconnecting: {Resolving, Loading, Live, Reconnecting},
		Polling:      {Resolving, Loading, Polling},
		Closed:       {Closed},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
