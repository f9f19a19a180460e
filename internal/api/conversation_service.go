package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/chatsync/internal/auth"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/wire"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// ConversationService serves conversation listings, history pages and read
// markers.
type ConversationService struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

func NewConversationService(db *store.DB, b *bus.Bus, logger *zap.Logger) *ConversationService {
	return &ConversationService{db: db, bus: b, logger: logger}
}

type pageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

func (s *ConversationService) List(c *gin.Context) {
	convs, err := s.db.ListConversations(auth.MemberID(c), 0)
	if err != nil {
		s.logger.Error("list conversations", zap.Error(err))
		fail(c, http.StatusInternalServerError, "list conversations failed")
		return
	}

	resp := wire.ConversationsResponse{Conversations: make([]wire.Conversation, 0, len(convs))}
	for _, conv := range convs {
		resp.Conversations = append(resp.Conversations, toWireConversation(conv))
	}
	ok(c, http.StatusOK, resp)
}

func (s *ConversationService) Messages(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFailed(c, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultPageSize
	}
	q.Limit = min(q.Limit, maxPageSize)

	convID := c.Param("id")
	if !s.authorize(c, convID) {
		return
	}

	msgs, err := s.db.ListMessages(convID, q.Page, q.Limit)
	if err != nil {
		s.logger.Error("list messages", zap.String("conversation_id", convID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "list messages failed")
		return
	}

	resp := wire.MessagesResponse{Messages: make([]wire.Message, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, toWireMessage(m))
	}
	c.Header("X-Page", strconv.Itoa(max(q.Page, 1)))
	ok(c, http.StatusOK, resp)
}

func (s *ConversationService) MarkRead(c *gin.Context) {
	convID := c.Param("id")
	member := auth.MemberID(c)

	err := s.db.MarkRead(convID, member, time.Now().UnixMilli())
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusForbidden, "not a participant")
		return
	}
	if err != nil {
		s.logger.Error("mark read", zap.String("conversation_id", convID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "mark read failed")
		return
	}
	s.bus.Emit(bus.ConversationRead, convID)
	c.Status(http.StatusNoContent)
}

// authorize answers 404 for unknown conversations and 403 for outsiders.
func (s *ConversationService) authorize(c *gin.Context, convID string) bool {
	return authorizeMember(c, s.db, s.logger, convID)
}

func authorizeMember(c *gin.Context, db *store.DB, logger *zap.Logger, convID string) bool {
	conv, err := db.GetConversation(convID)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "conversation not found")
		return false
	}
	if err != nil {
		logger.Error("get conversation", zap.String("conversation_id", convID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "lookup failed")
		return false
	}
	if !conv.HasMember(auth.MemberID(c)) {
		fail(c, http.StatusForbidden, "not a participant")
		return false
	}
	return true
}
