package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/matheus3301/chatsync/internal/auth"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/wire"
	"go.uber.org/zap"
)

// MessageService accepts new messages. A send without a conversation id
// finds or creates the direct conversation with the recipient. Retries that
// repeat a client nonce get the stored message back instead of a copy.
type MessageService struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	newID  func() string
	now    func() time.Time
}

func NewMessageService(db *store.DB, b *bus.Bus, logger *zap.Logger) *MessageService {
	return &MessageService{
		db:     db,
		bus:    b,
		logger: logger,
		newID:  func() string { return uuid.New().String() },
		now:    time.Now,
	}
}

func (s *MessageService) Send(c *gin.Context) {
	var req wire.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	sender := auth.MemberID(c)
	senderType := auth.MemberType(c)

	convID := req.ConversationID
	if convID == "" {
		conv, created, err := s.db.FindOrCreateDirect(sender, req.RecipientID, "member", s.newID())
		if err != nil {
			s.logger.Error("find or create conversation", zap.Error(err))
			fail(c, http.StatusInternalServerError, "create conversation failed")
			return
		}
		convID = conv.ID
		if created {
			s.logger.Info("conversation created",
				zap.String("conversation_id", convID),
				zap.String("sender", sender),
				zap.String("recipient", req.RecipientID))
			s.bus.Emit(bus.ConversationCreated, convID)
		}
	} else if !authorizeMember(c, s.db, s.logger, convID) {
		return
	}

	stored, inserted, err := s.db.InsertMessage(store.Message{
		ID:             s.newID(),
		ConversationID: convID,
		SenderID:       sender,
		SenderType:     senderType,
		Body:           req.Body,
		ClientNonce:    req.ClientNonce,
		CreatedAt:      s.now().UnixMilli(),
	})
	if err != nil {
		s.logger.Error("insert message", zap.String("conversation_id", convID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "store message failed")
		return
	}

	code := http.StatusOK
	if inserted {
		code = http.StatusCreated
		s.bus.Emit(bus.MessageInserted, stored)
	} else {
		s.logger.Debug("duplicate send answered from store",
			zap.String("message_id", stored.ID),
			zap.String("client_nonce", stored.ClientNonce))
	}
	ok(c, code, wire.SendMessageResponse{Message: toWireMessage(stored)})
}
