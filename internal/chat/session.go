package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/status"
	"go.uber.org/zap"
)

// Config holds the engine tunables.
type Config struct {
	// SelfID is the current member id. Optional; used to attribute
	// optimistic messages and to match direct conversations.
	SelfID string

	PageSize             int
	PollInterval         time.Duration
	PollTimeout          time.Duration
	SendTimeout          time.Duration
	HistoryTimeout       time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
}

// DefaultConfig returns the reference tunables.
func DefaultConfig() Config {
	return Config{
		PageSize:             50,
		PollInterval:         3 * time.Second,
		PollTimeout:          5 * time.Second,
		SendTimeout:          15 * time.Second,
		HistoryTimeout:       15 * time.Second,
		ReconnectDelay:       2 * time.Second,
		MaxReconnectAttempts: 5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = d.PollTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	if c.HistoryTimeout <= 0 {
		c.HistoryTimeout = d.HistoryTimeout
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = d.ReconnectDelay
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = d.MaxReconnectAttempts
	}
	return c
}

// Deps are the remote collaborators of a session. Push may be nil, which
// selects polling; ReadMarker and Bus may be nil too.
type Deps struct {
	Directory  Directory
	Source     MessageSource
	Sender     MessageSender
	ReadMarker ReadMarker
	Push       PushFactory
	Bus        *bus.Bus
	Logger     *zap.Logger
}

// Session is one open conversation: its Store, its Transport Manager and
// its send pipeline. Opening another conversation means closing this
// session and opening a new one.
type Session struct {
	store   *Store
	manager *Manager
	sender  *Sender
	status  *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger

	mu     sync.Mutex
	handle Handle
	draft  string
	closed bool
	detach func()
}

// Open resolves the conversation, seeds its history and attaches a live
// transport. Resolution and history failures are not fatal: the returned
// session is usable and the error wraps ErrResolutionFailed or
// ErrHistoryLoadFailed. Only invalid input yields a nil session.
func Open(ctx context.Context, cfg Config, deps Deps, in ResolveInput) (*Session, error) {
	cfg = cfg.withDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	subject := in.ConversationID
	if subject == "" {
		subject = in.RecipientID
	}
	machine := status.NewMachine(deps.Bus, subject)
	store := NewStore(logger)

	s := &Session{
		store: store,
		manager: NewManager(deps.Source, deps.Push, TransportConfig{
			PollInterval:         cfg.PollInterval,
			PollTimeout:          cfg.PollTimeout,
			PageSize:             cfg.PageSize,
			ReconnectDelay:       cfg.ReconnectDelay,
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		}, machine, deps.Bus, logger),
		sender: NewSender(deps.Sender, store, cfg.SelfID, cfg.SendTimeout, deps.Bus, logger),
		status: machine,
		bus:    deps.Bus,
		logger: logger,
	}

	_ = machine.Transition(status.Resolving)
	h, err := NewResolver(deps.Directory, cfg.SelfID, logger).Resolve(ctx, in)
	if errors.Is(err, ErrInvalidInput) {
		return nil, err
	}
	s.handle = h
	if h.Deferred() {
		_ = machine.Transition(status.Idle)
		return s, err
	}

	machine.SetSubject(h.ConversationID)
	_ = machine.Transition(status.Loading)
	loader := NewHistoryLoader(deps.Source, deps.ReadMarker, store, cfg.PageSize, cfg.HistoryTimeout, deps.Bus, logger)
	herr := loader.Load(ctx, h.ConversationID)

	s.mu.Lock()
	s.attachLocked(h.ConversationID)
	s.mu.Unlock()
	return s, herr
}

// Handle returns the current conversation handle.
func (s *Session) Handle() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Messages returns the transcript in display order.
func (s *Session) Messages() []Message {
	return s.store.Read()
}

// Store exposes the session's transcript.
func (s *Session) Store() *Store {
	return s.store
}

// OnChange registers a callback fired after every transcript mutation. It
// may run with transport locks held and must not block.
func (s *Session) OnChange(fn func()) {
	s.store.SetOnChange(fn)
}

// TransportKind reports the live transport.
func (s *Session) TransportKind() TransportKind {
	return s.manager.Kind()
}

// Status returns the sync status of the conversation.
func (s *Session) Status() status.State {
	return s.status.Current()
}

// Draft returns the text of the last failed send, for the compose field.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// TakeDraft returns the draft and clears it.
func (s *Session) TakeDraft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.draft
	s.draft = ""
	return d
}

// Send sends body optimistically. A deferred conversation is created by
// the first successful send and a transport is attached to it.
func (s *Session) Send(ctx context.Context, body string) (Message, error) {
	h, err := s.openHandle()
	if err != nil {
		return Message{}, err
	}

	msg, err := s.sender.Send(ctx, h, body)
	if err != nil {
		// The draft comes back only if the entry really is failed.
		if m, ok := s.store.Get(msg.ID); ok && errors.Is(err, ErrSendFailed) && m.Status == StatusFailed {
			s.mu.Lock()
			s.draft = body
			s.mu.Unlock()
		}
		return msg, err
	}
	s.realize(msg.ConversationID)
	return msg, nil
}

// Retry re-sends a failed message in place.
func (s *Session) Retry(ctx context.Context, id string) (Message, error) {
	h, err := s.openHandle()
	if err != nil {
		return Message{}, err
	}
	msg, err := s.sender.Retry(ctx, h, id)
	if err != nil {
		return msg, err
	}
	s.realize(msg.ConversationID)
	return msg, nil
}

// Discard removes a failed message from the transcript.
func (s *Session) Discard(id string) error {
	m, ok := s.store.Get(id)
	if !ok || m.Status != StatusFailed {
		return ErrNotRetryable
	}
	s.store.Remove(id)
	return nil
}

// LastFailed returns the most recent failed message, if any.
func (s *Session) LastFailed() (Message, bool) {
	msgs := s.store.Read()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Status == StatusFailed {
			return msgs[i], true
		}
	}
	return Message{}, false
}

// Close detaches the transport synchronously. In-flight calls are not
// awaited; whatever they deliver afterwards is dropped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	detach := s.detach
	s.detach = nil
	s.mu.Unlock()

	if detach != nil {
		detach()
	}
	s.manager.Detach()
	_ = s.status.Transition(status.Closed)
	s.logger.Debug("session closed", zap.String("conversation_id", s.Handle().ConversationID))
}

func (s *Session) openHandle() (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Handle{}, ErrSessionClosed
	}
	return s.handle, nil
}

// realize binds a deferred session to the conversation the server created.
func (s *Session) realize(conversationID string) {
	if conversationID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.handle.Deferred() {
		return
	}
	s.handle.ConversationID = conversationID
	s.status.SetSubject(conversationID)
	s.logger.Info("conversation created",
		zap.String("conversation_id", conversationID),
		zap.String("recipient_id", s.handle.RecipientID))
	s.bus.Emit(bus.ConversationCreated, map[string]string{
		"conversation_id": conversationID,
		"recipient_id":    s.handle.RecipientID,
	})
	s.attachLocked(conversationID)
}

func (s *Session) attachLocked(conversationID string) {
	s.detach = s.manager.Attach(conversationID, func(msgs []Message) {
		if n := s.store.Merge(msgs...); n > 0 {
			s.bus.Emit(bus.MessageMerged, map[string]any{
				"conversation_id": conversationID,
				"count":           n,
			})
		}
	})
}
