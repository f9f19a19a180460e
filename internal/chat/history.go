package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"go.uber.org/zap"
)

// HistoryLoader seeds a Store with the most recent page of a conversation.
type HistoryLoader struct {
	source   MessageSource
	marker   ReadMarker
	store    *Store
	bus      *bus.Bus
	logger   *zap.Logger
	pageSize int
	timeout  time.Duration
}

// NewHistoryLoader creates a loader that seeds store. marker may be nil.
func NewHistoryLoader(source MessageSource, marker ReadMarker, store *Store, pageSize int, timeout time.Duration, b *bus.Bus, logger *zap.Logger) *HistoryLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryLoader{
		source:   source,
		marker:   marker,
		store:    store,
		bus:      b,
		logger:   logger,
		pageSize: pageSize,
		timeout:  timeout,
	}
}

// Load fetches page 1 and merges it. On success it announces the
// conversation as read and notifies the ReadMarker without waiting for it.
func (h *HistoryLoader) Load(ctx context.Context, conversationID string) error {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	msgs, err := h.source.GetMessages(ctx, conversationID, PageRequest{Page: 1, Limit: h.pageSize})
	if err != nil {
		h.logger.Warn("history load failed", zap.String("conversation_id", conversationID), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrHistoryLoadFailed, err)
	}

	for i := range msgs {
		msgs[i].Status = StatusConfirmed
		if msgs[i].ConversationID == "" {
			msgs[i].ConversationID = conversationID
		}
	}
	n := h.store.Merge(msgs...)
	h.logger.Info("history loaded",
		zap.String("conversation_id", conversationID),
		zap.Int("messages", len(msgs)),
		zap.Int("merged", n))

	h.bus.Emit(bus.ConversationRead, map[string]string{"conversation_id": conversationID})
	if h.marker != nil {
		go h.markRead(conversationID)
	}
	return nil
}

func (h *HistoryLoader) markRead(conversationID string) {
	ctx := context.Background()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	if err := h.marker.MarkRead(ctx, conversationID); err != nil {
		h.logger.Debug("mark read failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}
}
