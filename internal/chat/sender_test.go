package chat

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"go.uber.org/zap"
)

func echoServer(id string, sec int64) func(SendRequest) (Message, error) {
	return func(req SendRequest) (Message, error) {
		conv := req.ConversationID
		if conv == "" {
			conv = "c7"
		}
		return Message{ID: id, ConversationID: conv, SenderID: "u1", Body: req.Body, CreatedAt: at(sec), Nonce: req.Nonce}, nil
	}
}

func TestSendConfirmsInPlace(t *testing.T) {
	s := NewStore(nil)
	s.Merge(confirmed("m1", 10), confirmed("m2", 20))
	remote := &fakeRemote{sendFn: echoServer("m3", 25)}
	b := bus.New()
	acks, unsub := b.Subscribe(bus.MessageSendAck, 1)
	defer unsub()

	snd := NewSender(remote, s, "u1", 0, b, zap.NewNop())
	snd.now = func() time.Time { return at(25) }

	msg, err := snd.Send(context.Background(), Handle{ConversationID: "c1"}, "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.ID != "m3" || msg.Status != StatusConfirmed {
		t.Errorf("returned %+v", msg)
	}
	if got, want := ids(s.Read()), []string{"m1", "m2", "m3"}; !slices.Equal(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}

	reqs := remote.sent()
	if len(reqs) != 1 || reqs[0].ConversationID != "c1" || reqs[0].Nonce == "" {
		t.Errorf("requests = %+v", reqs)
	}
	select {
	case <-acks:
	default:
		t.Error("no send ack event")
	}
}

func TestSendFailureKeepsFailedEntry(t *testing.T) {
	s := NewStore(nil)
	s.Merge(confirmed("m1", 10))
	remote := &fakeRemote{sendFn: func(SendRequest) (Message, error) {
		return Message{}, context.DeadlineExceeded
	}}

	snd := NewSender(remote, s, "u1", 0, nil, nil)
	msg, err := snd.Send(context.Background(), Handle{ConversationID: "c1"}, "hello")
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("err = %v, want ErrSendFailed", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want wrapped cause", err)
	}
	if msg.Status != StatusFailed || !IsTempID(msg.ID) {
		t.Errorf("returned %+v", msg)
	}

	got := s.Read()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[1].Status != StatusFailed || got[1].Body != "hello" {
		t.Errorf("entry = %+v", got[1])
	}
}

func TestSendPendingIsVisibleBeforeResponse(t *testing.T) {
	s := NewStore(nil)
	seen := make(chan []Message, 1)
	remote := &fakeRemote{sendFn: func(req SendRequest) (Message, error) {
		seen <- s.Read()
		return Message{ID: "m1", Body: req.Body, CreatedAt: at(5)}, nil
	}}

	snd := NewSender(remote, s, "u1", 0, nil, nil)
	if _, err := snd.Send(context.Background(), Handle{ConversationID: "c1"}, "hi"); err != nil {
		t.Fatal(err)
	}

	during := <-seen
	if len(during) != 1 || during[0].Status != StatusPending {
		t.Fatalf("during send: %+v", during)
	}
}

func TestSendRejectsEmptyBody(t *testing.T) {
	s := NewStore(nil)
	snd := NewSender(&fakeRemote{}, s, "u1", 0, nil, nil)
	if _, err := snd.Send(context.Background(), Handle{ConversationID: "c1"}, "   "); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("err = %v, want ErrEmptyBody", err)
	}
	if _, err := snd.Send(context.Background(), Handle{}, "hi"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if s.Len() != 0 {
		t.Error("rejected send touched the store")
	}
}

func TestConcurrentSendsAreIndependent(t *testing.T) {
	s := NewStore(nil)
	remote := &fakeRemote{sendFn: func(req SendRequest) (Message, error) {
		if req.Body == "bad" {
			return Message{}, errNetwork
		}
		return Message{ID: "srv-" + req.Body, Body: req.Body, CreatedAt: at(50)}, nil
	}}
	snd := NewSender(remote, s, "u1", 0, nil, nil)

	done := make(chan struct{})
	for _, body := range []string{"a", "bad", "b"} {
		go func() {
			_, _ = snd.Send(context.Background(), Handle{ConversationID: "c1"}, body)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 3; i++ {
		<-done
	}

	counts := map[Status]int{}
	for _, m := range s.Read() {
		counts[m.Status]++
	}
	if counts[StatusConfirmed] != 2 || counts[StatusFailed] != 1 || s.Len() != 3 {
		t.Errorf("statuses = %v", counts)
	}
}

func TestRetryReusesNonce(t *testing.T) {
	s := NewStore(nil)
	remote := &fakeRemote{}
	snd := NewSender(remote, s, "u1", 0, nil, nil)

	failed, err := snd.Send(context.Background(), Handle{ConversationID: "c1"}, "again")
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("err = %v", err)
	}

	remote.mu.Lock()
	remote.sendFn = echoServer("m1", 30)
	remote.mu.Unlock()

	msg, err := snd.Retry(context.Background(), Handle{ConversationID: "c1"}, failed.ID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if msg.ID != "m1" {
		t.Errorf("id = %s, want m1", msg.ID)
	}

	reqs := remote.sent()
	if len(reqs) != 2 || reqs[0].Nonce != reqs[1].Nonce {
		t.Errorf("nonces differ across retry: %+v", reqs)
	}
	if got := ids(s.Read()); !slices.Equal(got, []string{"m1"}) {
		t.Errorf("ids = %v, want [m1]", got)
	}

	if _, err := snd.Retry(context.Background(), Handle{ConversationID: "c1"}, "m1"); !errors.Is(err, ErrNotRetryable) {
		t.Errorf("retry of confirmed: err = %v", err)
	}
}

func TestSendTimeoutFailsEntry(t *testing.T) {
	s := NewStore(nil)
	remote := &fakeRemote{sendBlock: true}

	snd := NewSender(remote, s, "u1", 30*time.Millisecond, nil, nil)
	start := time.Now()
	msg, err := snd.Send(context.Background(), Handle{ConversationID: "c1"}, "hello")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Send took %v with a 30ms timeout", elapsed)
	}
	if !errors.Is(err, ErrSendFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want ErrSendFailed wrapping DeadlineExceeded", err)
	}
	if got, ok := s.Get(msg.ID); !ok || got.Status != StatusFailed {
		t.Errorf("entry = %+v, %v; want failed", got, ok)
	}
}

func TestSendLostResponseAfterEcho(t *testing.T) {
	s := NewStore(nil)
	remote := &fakeRemote{}
	remote.sendFn = func(req SendRequest) (Message, error) {
		// The confirmed record arrives through the live transport first.
		s.Merge(Message{ID: "m9", ConversationID: "c1", SenderID: "u1", Body: req.Body, CreatedAt: at(30), Nonce: req.Nonce})
		return Message{}, context.DeadlineExceeded
	}

	snd := NewSender(remote, s, "u1", 0, nil, nil)
	msg, err := snd.Send(context.Background(), Handle{ConversationID: "c1"}, "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.ID != "m9" || msg.Status != StatusConfirmed {
		t.Errorf("returned %+v, want confirmed m9", msg)
	}
	if got := s.Read(); len(got) != 1 || got[0].ID != "m9" {
		t.Errorf("store = %+v", got)
	}
}
