package api

import (
	"context"
	"encoding/json"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/wire"
	"go.uber.org/zap"
)

// Hub fans stored messages out to the websocket subscribers of their
// conversation. It learns about new messages from the bus.
type Hub struct {
	bus    *bus.Bus
	logger *zap.Logger

	register   chan subscribeReq
	unregister chan *streamClient
	done       chan struct{}

	// conversation id -> subscribed connections
	subs map[string]map[*streamClient]struct{}
}

type subscribeReq struct {
	client         *streamClient
	conversationID string
}

func NewHub(b *bus.Bus, logger *zap.Logger) *Hub {
	return &Hub{
		bus:        b,
		logger:     logger,
		register:   make(chan subscribeReq),
		unregister: make(chan *streamClient),
		done:       make(chan struct{}),
		subs:       make(map[string]map[*streamClient]struct{}),
	}
}

// Run serves registrations and bus events until ctx is cancelled, then
// closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	events, unsub := h.bus.Subscribe(bus.MessageInserted, 1024)
	defer unsub()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, set := range h.subs {
				for cl := range set {
					close(cl.send)
				}
			}
			h.subs = map[string]map[*streamClient]struct{}{}
			return

		case req := <-h.register:
			// The ack goes out before any insert so the client never sees
			// data ahead of its subscription confirmation.
			ack, _ := json.Marshal(wire.Envelope{Type: wire.TypeSubscribed})
			select {
			case req.client.send <- ack:
			default:
				close(req.client.send)
				continue
			}
			req.client.conversationID = req.conversationID
			if h.subs[req.conversationID] == nil {
				h.subs[req.conversationID] = make(map[*streamClient]struct{})
			}
			h.subs[req.conversationID][req.client] = struct{}{}
			h.logger.Debug("stream subscribed",
				zap.String("conversation_id", req.conversationID),
				zap.String("member", req.client.memberID))

		case cl := <-h.unregister:
			h.remove(cl)

		case evt := <-events:
			m, isMsg := evt.Payload.(store.Message)
			if !isMsg {
				continue
			}
			h.broadcast(m)
		}
	}
}

func (h *Hub) broadcast(m store.Message) {
	set := h.subs[m.ConversationID]
	if len(set) == 0 {
		return
	}
	env, err := wire.NewEnvelope(wire.TypeMessageInsert, toWireMessage(m))
	if err != nil {
		h.logger.Error("marshal insert", zap.Error(err))
		return
	}
	frame, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("marshal envelope", zap.Error(err))
		return
	}

	for cl := range set {
		select {
		case cl.send <- frame:
		default:
			// Slow subscriber: drop it and let its client reconnect.
			h.logger.Warn("dropping slow stream",
				zap.String("conversation_id", m.ConversationID),
				zap.String("member", cl.memberID))
			h.remove(cl)
		}
	}
}

func (h *Hub) remove(cl *streamClient) {
	set, found := h.subs[cl.conversationID]
	if !found {
		return
	}
	if _, member := set[cl]; !member {
		return
	}
	delete(set, cl)
	close(cl.send)
	if len(set) == 0 {
		delete(h.subs, cl.conversationID)
	}
}

// subscribe registers cl for conversationID. It returns false once the hub
// has stopped.
func (h *Hub) subscribe(cl *streamClient, conversationID string) bool {
	select {
	case h.register <- subscribeReq{client: cl, conversationID: conversationID}:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(cl *streamClient) {
	select {
	case h.unregister <- cl:
	case <-h.done:
	}
}
