package chat

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/status"
	"go.uber.org/zap"
)

// TransportConfig tunes the live transports.
type TransportConfig struct {
	PollInterval         time.Duration
	PollTimeout          time.Duration
	PageSize             int
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
}

// Manager owns the one live transport of a conversation session. The
// push-or-poll choice is made once per Attach from whether a PushFactory
// was supplied.
type Manager struct {
	source MessageSource
	push   PushFactory
	cfg    TransportConfig
	status *status.Machine
	bus    *bus.Bus
	logger *zap.Logger

	mu    sync.Mutex
	state *SyncState
	stop  func()
}

// NewManager creates a Transport Manager. push may be nil, in which case
// every attachment polls source. machine may be nil.
func NewManager(source MessageSource, push PushFactory, cfg TransportConfig, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		source: source,
		push:   push,
		cfg:    cfg,
		status: machine,
		bus:    b,
		logger: logger,
	}
}

// Kind reports which transport is active right now.
func (m *Manager) Kind() TransportKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return TransportNone
	}
	return m.state.Kind()
}

// State returns the SyncState of the current attachment, or nil.
func (m *Manager) State() *SyncState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attach starts a transport for conversationID and returns its detach
// function. Any previous attachment is torn down first. onEvent receives
// confirmed messages; it is called with the attachment's lock held, so it
// must not call back into the Manager.
//
// Detach is synchronous and idempotent. It does not wait for in-flight
// network calls; their results are dropped when they land.
func (m *Manager) Attach(conversationID string, onEvent func([]Message)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stop != nil {
		m.stop()
	}

	kind := TransportPoll
	if m.push != nil {
		kind = TransportPush
	}
	st := newSyncState(kind)
	ctx, cancel := context.WithCancel(context.Background())

	var once sync.Once
	stop := func() {
		once.Do(func() {
			sub := st.deactivate()
			cancel()
			if sub != nil {
				sub.Unsubscribe()
			}
			m.logger.Debug("transport detached",
				zap.String("conversation_id", conversationID),
				zap.String("transport", string(kind)))
		})
	}
	m.state = st
	m.stop = stop

	m.logger.Info("transport attached",
		zap.String("conversation_id", conversationID),
		zap.String("transport", string(kind)))

	if kind == TransportPush {
		go m.runPush(ctx, conversationID, st, onEvent)
	} else {
		m.transition(status.Polling)
		go m.runPoll(ctx, conversationID, st, onEvent)
	}

	return func() {
		m.mu.Lock()
		if m.state == st {
			m.state = nil
			m.stop = nil
		}
		m.mu.Unlock()
		stop()
	}
}

// Detach tears down the current attachment, if any.
func (m *Manager) Detach() {
	m.mu.Lock()
	stop := m.stop
	m.state = nil
	m.stop = nil
	m.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (m *Manager) transition(to status.State) {
	if m.status == nil {
		return
	}
	if err := m.status.Transition(to); err != nil {
		m.logger.Debug("status transition rejected", zap.Error(err))
	}
}
