package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errNetwork = errors.New("network unreachable")

// fakeRemote implements Directory, MessageSource, MessageSender and ReadMarker.
type fakeRemote struct {
	mu sync.Mutex

	conversations []Conversation
	listErr       error

	pages    [][]Message // successive GetMessages results; the last one repeats
	getErr   error
	getCalls int
	block    chan struct{} // if set, GetMessages waits on it
	started  chan struct{} // if set, signalled when GetMessages begins

	sendFn    func(SendRequest) (Message, error)
	sendBlock bool // if set, SendMessage waits for ctx to end
	sends    []SendRequest
	marked   []string
	markedCh chan string
}

func (f *fakeRemote) ListConversations(ctx context.Context) ([]Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]Conversation(nil), f.conversations...), nil
}

func (f *fakeRemote) GetMessages(ctx context.Context, conversationID string, page PageRequest) ([]Message, error) {
	f.mu.Lock()
	f.getCalls++
	call := f.getCalls
	block := f.block
	started := f.started
	f.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if len(f.pages) == 0 {
		return nil, nil
	}
	i := call - 1
	if i >= len(f.pages) {
		i = len(f.pages) - 1
	}
	return append([]Message(nil), f.pages[i]...), nil
}

func (f *fakeRemote) SendMessage(ctx context.Context, req SendRequest) (Message, error) {
	f.mu.Lock()
	f.sends = append(f.sends, req)
	fn := f.sendFn
	blockSend := f.sendBlock
	f.mu.Unlock()
	if blockSend {
		<-ctx.Done()
		return Message{}, ctx.Err()
	}
	if fn == nil {
		return Message{}, errNetwork
	}
	return fn(req)
}

func (f *fakeRemote) MarkRead(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	f.marked = append(f.marked, conversationID)
	ch := f.markedCh
	f.mu.Unlock()
	if ch != nil {
		ch <- conversationID
	}
	return nil
}

func (f *fakeRemote) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

func (f *fakeRemote) setPages(pages ...[]Message) {
	f.mu.Lock()
	f.pages = pages
	f.getCalls = 0
	f.mu.Unlock()
}

func (f *fakeRemote) sent() []SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SendRequest(nil), f.sends...)
}

type fakeSub struct {
	done     chan struct{}
	once     sync.Once
	mu       sync.Mutex
	unsubbed bool
}

func newFakeSub() *fakeSub { return &fakeSub{done: make(chan struct{})} }

func (s *fakeSub) Done() <-chan struct{} { return s.done }

func (s *fakeSub) Unsubscribe() {
	s.mu.Lock()
	s.unsubbed = true
	s.mu.Unlock()
}

func (s *fakeSub) drop() { s.once.Do(func() { close(s.done) }) }

func (s *fakeSub) released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubbed
}

// fakePush implements PushFactory.
type fakePush struct {
	mu       sync.Mutex
	err      error
	attempts int
	subs     []*fakeSub
	onInsert func(Message)
	convID   string
}

func (p *fakePush) SubscribeInserts(ctx context.Context, conversationID string, onInsert func(Message)) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.err != nil {
		return nil, p.err
	}
	sub := newFakeSub()
	p.subs = append(p.subs, sub)
	p.onInsert = onInsert
	p.convID = conversationID
	return sub, nil
}

func (p *fakePush) deliver(m Message) {
	p.mu.Lock()
	fn := p.onInsert
	p.mu.Unlock()
	fn(m)
}

func (p *fakePush) subscribed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func (p *fakePush) lastSub() *fakeSub {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subs[len(p.subs)-1]
}

func (p *fakePush) tries() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func at(sec int64) time.Time { return time.Unix(sec, 0) }

func confirmed(id string, sec int64) Message {
	return Message{ID: id, ConversationID: "c1", SenderID: "u1", Body: "body " + id, CreatedAt: at(sec), Status: StatusConfirmed}
}

func ids(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func fastTransport() TransportConfig {
	return TransportConfig{
		PollInterval:         10 * time.Millisecond,
		PollTimeout:          time.Second,
		PageSize:             50,
		ReconnectDelay:       5 * time.Millisecond,
		MaxReconnectAttempts: 3,
	}
}
