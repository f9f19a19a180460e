package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/matheus3301/chatsync/internal/auth"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/wire"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4096
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamClient is one websocket subscribed to at most one conversation.
// conversationID and send are owned by the hub once registered.
type streamClient struct {
	conn           *websocket.Conn
	send           chan []byte
	done           chan struct{}
	memberID       string
	conversationID string
}

// InsertStream upgrades authenticated requests to the message.insert feed.
type InsertStream struct {
	hub    *Hub
	db     *store.DB
	logger *zap.Logger
}

func NewInsertStream(hub *Hub, db *store.DB, logger *zap.Logger) *InsertStream {
	return &InsertStream{hub: hub, db: db, logger: logger}
}

func (s *InsertStream) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &streamClient{
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		memberID: auth.MemberID(c),
	}
	go s.writePump(cl)
	go s.readPump(cl)
}

func (s *InsertStream) readPump(cl *streamClient) {
	defer func() {
		close(cl.done)
		s.hub.leave(cl)
		_ = cl.conn.Close()
	}()

	cl.conn.SetReadLimit(maxFrameSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	subscribed := false
	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		// Any frame from the client proves it is alive.
		_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))

		// Once subscribed the hub owns send; later frames are ignored.
		if subscribed {
			continue
		}

		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.reject(cl, "malformed frame")
			continue
		}
		if env.Type != wire.TypeSubscribe {
			continue
		}

		var p wire.SubscribePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.ConversationID == "" {
			s.reject(cl, "conversationId is required")
			continue
		}
		member, err := s.db.IsParticipant(p.ConversationID, cl.memberID)
		if err != nil || !member {
			s.reject(cl, "not a participant")
			continue
		}
		if !s.hub.subscribe(cl, p.ConversationID) {
			return
		}
		subscribed = true
	}
}

// reject queues an error frame. Only valid before subscription.
func (s *InsertStream) reject(cl *streamClient, msg string) {
	env, _ := wire.NewEnvelope(wire.TypeError, wire.ErrorPayload{Message: msg})
	frame, _ := json.Marshal(env)
	select {
	case cl.send <- frame:
	default:
	}
}

func (s *InsertStream) writePump(cl *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case frame, open := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !open {
				_ = cl.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cl.done:
			return
		}
	}
}
