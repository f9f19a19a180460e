package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatsync/internal/bus"
	"go.uber.org/zap"
)

// tempIDPrefix marks client-assigned ids of optimistic messages.
const tempIDPrefix = "tmp-"

// IsTempID reports whether id was assigned locally to an unconfirmed message.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// Sender is the optimistic send pipeline: it renders a message into the
// Store before the network call and reconciles the outcome afterwards.
type Sender struct {
	api     MessageSender
	store   *Store
	selfID  string
	timeout time.Duration
	bus     *bus.Bus
	logger  *zap.Logger
	now     func() time.Time
}

// NewSender creates a send pipeline writing into store.
func NewSender(api MessageSender, store *Store, selfID string, timeout time.Duration, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		api:     api,
		store:   store,
		selfID:  selfID,
		timeout: timeout,
		bus:     b,
		logger:  logger,
		now:     time.Now,
	}
}

// Send inserts a pending message and dispatches it. For a deferred handle
// the server creates the conversation as part of the same call; the
// returned message carries its id. On failure the entry stays in the Store
// as failed and the error wraps ErrSendFailed.
func (s *Sender) Send(ctx context.Context, h Handle, body string) (Message, error) {
	if strings.TrimSpace(body) == "" {
		return Message{}, ErrEmptyBody
	}
	if h.Deferred() && h.RecipientID == "" {
		return Message{}, ErrInvalidInput
	}

	pending := Message{
		ID:             tempIDPrefix + uuid.NewString(),
		ConversationID: h.ConversationID,
		SenderID:       s.selfID,
		Body:           body,
		CreatedAt:      s.now(),
		Status:         StatusPending,
		Nonce:          uuid.NewString(),
	}
	if !s.store.Insert(pending) {
		// uuid collision or a reused nonce; never expected.
		return Message{}, fmt.Errorf("%w: duplicate pending message", ErrSendFailed)
	}
	s.bus.Emit(bus.MessagePending, map[string]string{
		"conversation_id": h.ConversationID,
		"msg_id":          pending.ID,
	})

	return s.dispatch(ctx, h, pending)
}

// Retry sends a failed message again with its original nonce, so a server
// that already stored the first attempt returns the same record.
func (s *Sender) Retry(ctx context.Context, h Handle, id string) (Message, error) {
	pending, ok := s.store.Resend(id)
	if !ok {
		return Message{}, ErrNotRetryable
	}
	s.logger.Info("retrying message", zap.String("msg_id", id), zap.String("nonce", pending.Nonce))
	return s.dispatch(ctx, h, pending)
}

func (s *Sender) dispatch(ctx context.Context, h Handle, pending Message) (Message, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	confirmed, err := s.api.SendMessage(ctx, SendRequest{
		RecipientID:    h.RecipientID,
		ConversationID: h.ConversationID,
		Body:           pending.Body,
		Nonce:          pending.Nonce,
	})
	if err != nil {
		if !s.store.Fail(pending.ID) {
			// A push or poll echo may have confirmed the message before the
			// response was lost.
			if echo, ok := s.store.FindByNonce(pending.Nonce, pending.SenderID); ok && echo.Status == StatusConfirmed {
				s.logger.Info("send response lost, message already confirmed",
					zap.String("msg_id", echo.ID),
					zap.String("nonce", pending.Nonce),
					zap.Error(err))
				s.bus.Emit(bus.MessageSendAck, map[string]string{
					"conversation_id": echo.ConversationID,
					"client_msg_id":   pending.ID,
					"msg_id":          echo.ID,
				})
				return echo, nil
			}
		}
		s.logger.Error("failed to send message",
			zap.String("msg_id", pending.ID),
			zap.String("conversation_id", h.ConversationID),
			zap.Error(err))
		s.bus.Emit(bus.MessageSendFailed, map[string]string{
			"msg_id": pending.ID,
			"error":  err.Error(),
		})
		pending.Status = StatusFailed
		return pending, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	if confirmed.ID == "" {
		confirmed.ID = pending.ID
	}
	if confirmed.ConversationID == "" {
		confirmed.ConversationID = h.ConversationID
	}
	if confirmed.Nonce == "" {
		confirmed.Nonce = pending.Nonce
	}
	if confirmed.SenderID == "" {
		confirmed.SenderID = pending.SenderID
	}
	if confirmed.CreatedAt.IsZero() {
		confirmed.CreatedAt = pending.CreatedAt
	}
	confirmed.Status = StatusConfirmed

	s.store.Confirm(pending.ID, confirmed)
	s.bus.Emit(bus.MessageSendAck, map[string]string{
		"conversation_id": confirmed.ConversationID,
		"client_msg_id":   pending.ID,
		"msg_id":          confirmed.ID,
	})
	return confirmed, nil
}
