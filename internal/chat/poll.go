package chat

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"go.uber.org/zap"
)

// runPoll fetches the latest page immediately and then on every
// PollInterval until ctx ends. A tick that fires while the previous poll
// is still in flight is skipped, not queued.
func (m *Manager) runPoll(ctx context.Context, conversationID string, st *SyncState, onEvent func([]Message)) {
	log := m.logger.With(zap.String("conversation_id", conversationID), zap.String("transport", string(TransportPoll)))

	var inFlight atomic.Bool
	tick := func() {
		if !inFlight.CompareAndSwap(false, true) {
			log.Debug("poll still in flight, skipping tick")
			return
		}
		go func() {
			defer inFlight.Store(false)
			m.pollOnce(ctx, conversationID, st, onEvent, log)
		}()
	}

	tick()

	interval := m.cfg.PollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tick()
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) pollOnce(ctx context.Context, conversationID string, st *SyncState, onEvent func([]Message), log *zap.Logger) {
	pctx := ctx
	if m.cfg.PollTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, m.cfg.PollTimeout)
		defer cancel()
	}

	page, err := m.source.GetMessages(pctx, conversationID, PageRequest{Page: 1, Limit: m.cfg.PageSize})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("poll failed", zap.Error(err))
		m.bus.Emit(bus.SyncPollFailed, map[string]string{
			"conversation_id": conversationID,
			"error":           err.Error(),
		})
		return
	}

	for i := range page {
		page[i].Status = StatusConfirmed
		if page[i].ConversationID == "" {
			page[i].ConversationID = conversationID
		}
	}
	if !st.deliverPage(page, onEvent) {
		log.Debug("poll page unchanged or detached", zap.Int("count", len(page)))
	}
}
