package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/wire"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var _ chat.PushFactory = (*InsertSubscriber)(nil)

const (
	DefaultHeartbeat = 20 * time.Second
	handshakeTimeout = 10 * time.Second
	readLimit        = 1 << 20
)

// InsertSubscriber opens one websocket per conversation and forwards
// message.insert frames. It is the push transport of the chat engine.
type InsertSubscriber struct {
	url       string
	tokens    TokenSource
	heartbeat time.Duration
	logger    *zap.Logger
}

type SubscriberOption func(*InsertSubscriber)

func WithHeartbeat(d time.Duration) SubscriberOption {
	return func(s *InsertSubscriber) { s.heartbeat = d }
}

func WithSubscriberLogger(l *zap.Logger) SubscriberOption {
	return func(s *InsertSubscriber) { s.logger = l }
}

// NewInsertSubscriber creates a push factory for the websocket at wsURL.
func NewInsertSubscriber(wsURL string, tokens TokenSource, opts ...SubscriberOption) *InsertSubscriber {
	s := &InsertSubscriber{
		url:       wsURL,
		tokens:    tokens,
		heartbeat: DefaultHeartbeat,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubscribeInserts dials, subscribes to conversationID and waits for the
// server's acknowledgement. onInsert runs on the read goroutine.
func (s *InsertSubscriber) SubscribeInserts(ctx context.Context, conversationID string, onInsert func(chat.Message)) (chat.Subscription, error) {
	hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	header := http.Header{}
	if s.tokens != nil {
		tok, err := s.tokens.Token(hctx)
		if err != nil {
			return nil, fmt.Errorf("token: %w", err)
		}
		if tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	conn, _, err := websocket.Dial(hctx, s.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	conn.SetReadLimit(readLimit)

	env, err := wire.NewEnvelope(wire.TypeSubscribe, wire.SubscribePayload{ConversationID: conversationID})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "")
		return nil, err
	}
	if err := wsjson.Write(hctx, conn, env); err != nil {
		conn.Close(websocket.StatusNormalClosure, "")
		return nil, fmt.Errorf("send subscribe: %w", err)
	}

	var ack wire.Envelope
	if err := wsjson.Read(hctx, conn, &ack); err != nil {
		conn.Close(websocket.StatusNormalClosure, "")
		return nil, fmt.Errorf("read subscribe ack: %w", err)
	}
	if ack.Type != wire.TypeSubscribed {
		conn.Close(websocket.StatusNormalClosure, "")
		var p wire.ErrorPayload
		_ = json.Unmarshal(ack.Payload, &p)
		return nil, fmt.Errorf("expected %q, got %q: %s", wire.TypeSubscribed, ack.Type, p.Message)
	}

	subCtx, subCancel := context.WithCancel(context.Background())
	sub := &insertSub{
		conn:   conn,
		cancel: subCancel,
		done:   make(chan struct{}),
		logger: s.logger.With(zap.String("conversation_id", conversationID)),
	}
	go sub.readLoop(subCtx, onInsert)
	if s.heartbeat > 0 {
		go sub.heartbeatLoop(subCtx, s.heartbeat)
	}
	return sub, nil
}

type insertSub struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func (s *insertSub) Done() <-chan struct{} { return s.done }

func (s *insertSub) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		s.conn.Close(websocket.StatusNormalClosure, "unsubscribe")
	})
}

func (s *insertSub) readLoop(ctx context.Context, onInsert func(chat.Message)) {
	defer close(s.done)
	for {
		var env wire.Envelope
		if err := wsjson.Read(ctx, s.conn, &env); err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("insert stream closed", zap.Error(err))
			}
			return
		}

		switch env.Type {
		case wire.TypeMessageInsert:
			var m wire.Message
			if err := json.Unmarshal(env.Payload, &m); err != nil {
				s.logger.Warn("bad insert payload", zap.Error(err))
				continue
			}
			onInsert(m.ToChat())
		case wire.TypeError:
			var p wire.ErrorPayload
			_ = json.Unmarshal(env.Payload, &p)
			s.logger.Warn("server error on insert stream", zap.String("error", p.Message))
		}
	}
}

func (s *insertSub) heartbeatLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, every)
			err := s.conn.Ping(pctx)
			cancel()
			if err != nil && ctx.Err() == nil {
				s.logger.Warn("heartbeat failed", zap.Error(err))
				s.conn.Close(websocket.StatusGoingAway, "heartbeat timeout")
				return
			}
		}
	}
}
